package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

const tracerName = "github.com/gtaroom/GTA-GAME-sub003/internal/usecase"

// Check names reported to the DecisionRecorder.
const (
	CheckSingle = "single"
	CheckAll    = "all"
	CheckAny    = "any"
	CheckRole   = "role"
)

// Decision outcomes reported to the DecisionRecorder.
const (
	OutcomeAllow        = "allow"
	OutcomeDeny         = "deny"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// CustomRoleLookup resolves active custom roles to their permission sets.
// Implementations return ErrRoleNotFound for unknown or inactive roles.
type CustomRoleLookup interface {
	ActivePermissions(ctx context.Context, roleName string) (domain.PermissionSet, error)
}

// DecisionRecorder observes authorization decisions.
type DecisionRecorder interface {
	RecordDecision(check, source, outcome string)
}

// PermissionResolver turns a principal and required capabilities into an
// allow/deny decision. It never caches decisions.
type PermissionResolver struct {
	builtin  domain.BuiltinTable
	custom   CustomRoleLookup
	recorder DecisionRecorder
	tracer   trace.Tracer
}

// ResolverOption customises a PermissionResolver.
type ResolverOption func(*PermissionResolver)

// WithDecisionRecorder attaches a decision recorder.
func WithDecisionRecorder(recorder DecisionRecorder) ResolverOption {
	return func(r *PermissionResolver) {
		r.recorder = recorder
	}
}

// WithTracer overrides the tracer (defaults to the global provider).
func WithTracer(tracer trace.Tracer) ResolverOption {
	return func(r *PermissionResolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewPermissionResolver constructs a resolver over an injected built-in table.
func NewPermissionResolver(builtin domain.BuiltinTable, custom CustomRoleLookup, opts ...ResolverOption) *PermissionResolver {
	r := &PermissionResolver{
		builtin: builtin,
		custom:  custom,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasPermission allows iff the principal's role grants capability.
func (r *PermissionResolver) HasPermission(ctx context.Context, principal *domain.Principal, capability string) error {
	return r.HasAllPermissions(ctx, principal, capability)
}

// HasAllPermissions allows iff every capability is granted. The first missing
// capability is named in the Forbidden error.
func (r *PermissionResolver) HasAllPermissions(ctx context.Context, principal *domain.Principal, capabilities ...string) (err error) {
	check := CheckAll
	if len(capabilities) == 1 {
		check = CheckSingle
	}

	ctx, span := r.startSpan(ctx, check, principal, capabilities)
	source := "none"
	defer func() { r.finish(span, check, source, err) }()

	if !authenticated(principal) {
		return ErrUnauthenticated
	}

	if principal.Role == domain.SuperuserRole {
		source = "superuser"
		return nil
	}

	set, src, err := r.permissionsFor(ctx, principal.Role)
	source = src
	if err != nil {
		return err
	}

	for _, capability := range capabilities {
		if !set.Allows(capability) {
			return apperr.Newf(apperr.KindForbidden, "missing permission: %s", capability)
		}
	}

	return nil
}

// HasAnyPermission allows iff at least one capability is granted.
func (r *PermissionResolver) HasAnyPermission(ctx context.Context, principal *domain.Principal, capabilities ...string) (err error) {
	ctx, span := r.startSpan(ctx, CheckAny, principal, capabilities)
	source := "none"
	defer func() { r.finish(span, CheckAny, source, err) }()

	if !authenticated(principal) {
		return ErrUnauthenticated
	}

	if principal.Role == domain.SuperuserRole {
		source = "superuser"
		return nil
	}

	set, src, err := r.permissionsFor(ctx, principal.Role)
	source = src
	if err != nil {
		return err
	}

	for _, capability := range capabilities {
		if set.Allows(capability) {
			return nil
		}
	}

	return ErrPermissionDenied
}

// HasRole is the role-membership gate: exact equality against allowed, with no
// registry lookup.
func (r *PermissionResolver) HasRole(principal *domain.Principal, allowed ...string) (err error) {
	defer func() { r.record(CheckRole, "membership", err) }()

	if !authenticated(principal) {
		return ErrUnauthenticated
	}

	for _, role := range allowed {
		if principal.Role == role {
			return nil
		}
	}

	return ErrPermissionDenied
}

// permissionsFor resolves a non-superuser role. Unknown or inactive custom
// roles yield an empty set, which denies everything.
func (r *PermissionResolver) permissionsFor(ctx context.Context, role string) (domain.PermissionSet, string, error) {
	if set, ok := r.builtin.Lookup(role); ok {
		return set, string(domain.RoleSourceBuiltin), nil
	}

	if r.custom == nil {
		return domain.PermissionSet{}, "unknown", nil
	}

	set, err := r.custom.ActivePermissions(ctx, role)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return domain.PermissionSet{}, "unknown", nil
		}
		return nil, string(domain.RoleSourceCustom), fmt.Errorf("resolve role %q: %w", role, err)
	}

	return set, string(domain.RoleSourceCustom), nil
}

func authenticated(principal *domain.Principal) bool {
	return principal != nil && strings.TrimSpace(principal.Role) != ""
}

func (r *PermissionResolver) startSpan(ctx context.Context, check string, principal *domain.Principal, capabilities []string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rbac.check", check),
		attribute.StringSlice("rbac.capabilities", capabilities),
	}
	if principal != nil {
		attrs = append(attrs,
			attribute.String("rbac.principal_id", principal.ID),
			attribute.String("rbac.role", principal.Role),
		)
	}
	return r.tracer.Start(ctx, "rbac.resolve", trace.WithAttributes(attrs...))
}

func (r *PermissionResolver) finish(span trace.Span, check, source string, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(
		attribute.String("rbac.source", source),
		attribute.String("rbac.outcome", outcome),
	)
	if outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if r.recorder != nil {
		r.recorder.RecordDecision(check, source, outcome)
	}
}

func (r *PermissionResolver) record(check, source string, err error) {
	if r.recorder != nil {
		r.recorder.RecordDecision(check, source, outcomeOf(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeAllow
	case errors.Is(err, apperr.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return OutcomeDeny
	default:
		return OutcomeError
	}
}
