package services

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"blogify/application/ports"
	"blogify/domain/core/validators"
	"blogify/domain/events"
	"blogify/pkg/errors"
	"blogify/pkg/extensions"
)

// RoutePolicy says which routes need a session and which are for signed
// out users only.
type RoutePolicy struct {
	PrivatePrefixes []string `yaml:"private_prefixes"`
	AuthPrefixes    []string `yaml:"auth_prefixes"`
	HomePath        string   `yaml:"home_path"`
	PublicRoot      string   `yaml:"public_root"`
}

// DefaultRoutePolicy returns the stock route layout.
func DefaultRoutePolicy() RoutePolicy {
	return RoutePolicy{
		PrivatePrefixes: []string{"/home", "/update-password"},
		AuthPrefixes:    []string{"/auth"},
		HomePath:        "/home",
		PublicRoot:      "/",
	}
}

// Validate checks that every configured route is an absolute path.
func (p RoutePolicy) Validate() error {
	v := validators.NewPathValidator()
	validationErrors := errors.NewValidationErrors()

	if err := v.ValidatePrefixes("private_prefixes", p.PrivatePrefixes); err != nil {
		validationErrors.Merge(err)
	}
	if err := v.ValidatePrefixes("auth_prefixes", p.AuthPrefixes); err != nil {
		validationErrors.Merge(err)
	}
	if _, ok := v.SafeLocalPath(p.HomePath); !ok {
		validationErrors.Add("home_path", "must be a local absolute path")
	}
	if _, ok := v.SafeLocalPath(p.PublicRoot); !ok {
		validationErrors.Add("public_root", "must be a local absolute path")
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

func (p RoutePolicy) isAuthPath(path string) bool {
	return underAny(path, p.AuthPrefixes)
}

func (p RoutePolicy) isPrivatePath(path string) bool {
	return underAny(path, p.PrivatePrefixes)
}

func underAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if validators.HasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decision is what the shell should do in response to an auth change. At
// most one of Navigate and Reload is set.
type Decision struct {
	Navigate string `json:"navigate,omitempty"`
	Reload   bool   `json:"reload,omitempty"`
}

// Action names the decision for logs and metrics.
func (d Decision) Action() string {
	switch {
	case d.Navigate != "":
		return "navigate"
	case d.Reload:
		return "reload"
	default:
		return "none"
	}
}

// AuthMetrics counts auth changes by the action they caused.
type AuthMetrics interface {
	RecordAuthEvent(event, action string)
}

// AuthReconciler keeps the shell's location consistent with the session:
// it leaves auth pages after sign-in, leaves private pages once signed out,
// and reloads on sign-out.
type AuthReconciler struct {
	sessions  ports.SessionProvider
	navigator ports.Navigator
	policy    RoutePolicy
	paths     *validators.PathValidator
	hooks     *extensions.HookManager
	metrics   AuthMetrics
	logger    *zap.Logger

	mu  sync.Mutex
	sub ports.Subscription
}

// NewAuthReconciler creates an unmounted reconciler. hooks and metrics may
// be nil.
func NewAuthReconciler(
	sessions ports.SessionProvider,
	navigator ports.Navigator,
	policy RoutePolicy,
	hooks *extensions.HookManager,
	metrics AuthMetrics,
	logger *zap.Logger,
) *AuthReconciler {
	return &AuthReconciler{
		sessions:  sessions,
		navigator: navigator,
		policy:    policy,
		paths:     validators.NewPathValidator(),
		hooks:     hooks,
		metrics:   metrics,
		logger:    logger,
	}
}

// Mount subscribes to the session provider. Mounting twice keeps the first
// subscription. Changes that happened before Mount are not replayed.
func (r *AuthReconciler) Mount() {
	r.mu.Lock()
	if r.sub != nil {
		r.mu.Unlock()
		return
	}
	// Hold a placeholder so a concurrent Mount does not subscribe again
	// while the provider delivers its initial event.
	pending := &pendingSubscription{}
	r.sub = pending
	r.mu.Unlock()

	sub := r.sessions.OnAuthStateChange(r.handle)

	r.mu.Lock()
	if r.sub == pending {
		r.sub = sub
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	// Unmounted while subscribing.
	sub.Unsubscribe()
}

// Unmount disposes the subscription. It is safe to call repeatedly.
func (r *AuthReconciler) Unmount() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Mounted reports whether the reconciler is listening.
func (r *AuthReconciler) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub != nil
}

// Decide maps an auth change observed at location (path plus optional
// query) to the navigation it calls for.
func (r *AuthReconciler) Decide(location string, event events.AuthChangeEvent, session *events.Session) Decision {
	path, query := splitLocation(location)

	if r.policy.isAuthPath(path) {
		if event != events.AuthSignedIn || session == nil {
			return Decision{}
		}
		if next := query.Get("next"); next != "" {
			if safe, ok := r.paths.SafeLocalPath(next); ok {
				return Decision{Navigate: safe}
			}
			r.logger.Warn("Ignoring unsafe next parameter", zap.String("next", next))
		}
		return Decision{Navigate: r.policy.HomePath}
	}

	if session == nil && r.policy.isPrivatePath(path) {
		return Decision{Navigate: r.policy.PublicRoot}
	}

	if event == events.AuthSignedOut {
		return Decision{Reload: true}
	}
	return Decision{}
}

func (r *AuthReconciler) handle(change events.AuthStateChange) {
	ctx := context.Background()
	if err := r.hooks.Execute(ctx, extensions.HookAuthStateChange, change); err != nil {
		r.logger.Warn("Auth change hook failed", zap.String("event", string(change.Event)), zap.Error(err))
	}

	location := r.navigator.Location()
	decision := r.Decide(location, change.Event, change.Session)

	r.logger.Debug("Auth change reconciled",
		zap.String("event", string(change.Event)),
		zap.Bool("hasSession", change.Session != nil),
		zap.String("location", location),
		zap.String("action", decision.Action()),
	)
	if r.metrics != nil {
		r.metrics.RecordAuthEvent(string(change.Event), decision.Action())
	}

	switch {
	case decision.Navigate != "":
		r.navigator.Assign(decision.Navigate)
	case decision.Reload:
		r.navigator.Reload()
	}
}

func splitLocation(location string) (string, url.Values) {
	u, err := url.Parse(location)
	if err != nil {
		return location, url.Values{}
	}
	return u.Path, u.Query()
}

type pendingSubscription struct{}

func (pendingSubscription) Unsubscribe() {}
