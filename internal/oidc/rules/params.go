package rules

import (
	"context"
	"regexp"
	"slices"
	"strconv"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/pkg/httpx"
)

// StateRule captures the opaque state parameter. It always produces a
// result, possibly empty, so later rules and error delivery can depend on
// it unconditionally.
type StateRule struct{}

func (r *StateRule) Key() Key         { return KeyState }
func (r *StateRule) DependsOn() []Key { return nil }

func (r *StateRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	result := NewResult(KeyState, req.Param("state"))
	return &result, nil
}

// MaxAgeRule parses the max_age parameter. Absence yields a nil value;
// a present value must be a non-negative integer of seconds.
type MaxAgeRule struct{}

func (r *MaxAgeRule) Key() Key         { return KeyMaxAge }
func (r *MaxAgeRule) DependsOn() []Key { return nil }

func (r *MaxAgeRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	raw := req.Param("max_age")
	if raw == "" {
		result := NewResult(KeyMaxAge, (*int64)(nil))
		return &result, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("max_age must be a non-negative integer")
	}

	result := NewResult(KeyMaxAge, &v)
	return &result, nil
}

var validPrompts = []string{"none", "login", "consent", "select_account"}

// PromptRule parses and validates the prompt parameter. "none" cannot be
// combined with any other value.
type PromptRule struct{}

func (r *PromptRule) Key() Key         { return KeyPrompts }
func (r *PromptRule) DependsOn() []Key { return nil }

func (r *PromptRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	prompts := httpx.ParseSpaceDelimitedFields(req.Param("prompt"))
	for _, p := range prompts {
		if !slices.Contains(validPrompts, p) {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("unknown prompt value %q", p)
		}
	}
	if slices.Contains(prompts, "none") && len(prompts) > 1 {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("prompt=none cannot be combined with other values")
	}

	result := NewResult(KeyPrompts, prompts)
	return &result, nil
}

var localeTagRe = regexp.MustCompile(`^[A-Za-z]{1,8}(-[A-Za-z0-9]{1,8})*$`)

// UILocalesRule parses the ui_locales parameter. Malformed tags are dropped
// rather than rejected since the parameter is advisory. Absence yields a
// nil value.
type UILocalesRule struct{}

func (r *UILocalesRule) Key() Key         { return KeyUILocales }
func (r *UILocalesRule) DependsOn() []Key { return nil }

func (r *UILocalesRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	fields := httpx.ParseSpaceDelimitedFields(req.Param("ui_locales"))
	if fields == nil {
		result := NewResult(KeyUILocales, []string(nil))
		return &result, nil
	}

	var locales []string
	for _, tag := range fields {
		if localeTagRe.MatchString(tag) {
			locales = append(locales, tag)
		}
	}

	result := NewResult(KeyUILocales, locales)
	return &result, nil
}
