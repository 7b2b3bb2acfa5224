package access_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cccteam/websession/access"
	"github.com/cccteam/websession/metrics"
	"github.com/cccteam/websession/roles"
	"github.com/cccteam/websession/sessioninfo"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

type flags struct {
	disabled map[string]bool
	loading  bool
}

func (f flags) IsPageEnabled(pathOrKey string) bool {
	key := strings.TrimPrefix(pathOrKey, "/")
	key, _, _ = strings.Cut(key, "/")

	return !f.disabled[key]
}

func (f flags) Loading() bool {
	return f.loading
}

type session sessioninfo.Snapshot

func (s session) Snapshot() sessioninfo.Snapshot {
	return sessioninfo.Snapshot(s)
}

func signedIn(role roles.Role) sessioninfo.Snapshot {
	return sessioninfo.Snapshot{
		State: sessioninfo.Authenticated,
		User:  &sessioninfo.User{ID: 7, Role: role},
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	employeesOff := flags{disabled: map[string]bool{"employees": true}}

	tests := []struct {
		name    string
		session sessioninfo.Snapshot
		flags   flags
		req     access.Request
		want    access.Decision
	}{
		{
			name:    "session restoring",
			session: sessioninfo.Snapshot{State: sessioninfo.Restoring},
			req:     access.Request{Path: "/employees"},
			want:    access.Decision{Kind: access.Loading},
		},
		{
			name:    "flags loading",
			session: signedIn(roles.HR),
			flags:   flags{loading: true},
			req:     access.Request{Path: "/employees"},
			want:    access.Decision{Kind: access.Loading},
		},
		{
			name:    "unauthenticated",
			session: sessioninfo.Snapshot{State: sessioninfo.Unauthenticated},
			flags:   employeesOff,
			req:     access.Request{Path: "/employees", RequiredRoles: roles.Collection{roles.Admin}},
			want:    access.Decision{Kind: access.DenyRedirect, Target: access.LoginPath},
		},
		{
			name:    "role mismatch",
			session: signedIn(roles.Employee),
			req:     access.Request{Path: "/employees", RequiredRoles: roles.Collection{roles.Admin, roles.HR}},
			want:    access.Decision{Kind: access.DenyRedirect, Target: access.DashboardPath},
		},
		{
			name:    "role mismatch wins over disabled flag",
			session: signedIn(roles.Employee),
			flags:   employeesOff,
			req:     access.Request{Path: "/employees/42", RequiredRoles: roles.Collection{roles.Admin, roles.HR}},
			want:    access.Decision{Kind: access.DenyRedirect, Target: access.DashboardPath},
		},
		{
			name:    "disabled flag",
			session: signedIn(roles.HR),
			flags:   employeesOff,
			req:     access.Request{Path: "/employees/42", RequiredRoles: roles.Collection{roles.Admin, roles.HR}},
			want:    access.Decision{Kind: access.DenyExplain, Target: access.DashboardPath, Reason: access.DisabledReason},
		},
		{
			name:    "allowed with role",
			session: signedIn(roles.HR),
			req:     access.Request{Path: "/employees", RequiredRoles: roles.Collection{roles.Admin, roles.HR}},
			want:    access.Decision{Kind: access.Allow},
		},
		{
			name:    "allowed without role restriction",
			session: signedIn(roles.Employee),
			flags:   employeesOff,
			req:     access.Request{Path: "/leave-requests"},
			want:    access.Decision{Kind: access.Allow},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := access.Decide(tt.session, tt.flags, tt.req)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decide() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind access.Kind
		want string
	}{
		{kind: access.Allow, want: "allow"},
		{kind: access.Loading, want: "loading"},
		{kind: access.DenyRedirect, want: "redirect"},
		{kind: access.DenyExplain, want: "explain"},
		{kind: access.Kind(42), want: "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestGuard_Require(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		session      sessioninfo.Snapshot
		flags        flags
		path         string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:       "loading",
			session:    sessioninfo.Snapshot{State: sessioninfo.Restoring},
			path:       "/employees",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:         "unauthenticated",
			session:      sessioninfo.Snapshot{State: sessioninfo.Unauthenticated},
			path:         "/employees",
			wantStatus:   http.StatusSeeOther,
			wantLocation: access.LoginPath,
		},
		{
			name:         "role mismatch",
			session:      signedIn(roles.Employee),
			path:         "/employees/42",
			wantStatus:   http.StatusSeeOther,
			wantLocation: access.DashboardPath,
		},
		{
			name:         "disabled page",
			session:      signedIn(roles.HR),
			flags:        flags{disabled: map[string]bool{"employees": true}},
			path:         "/employees/42",
			wantStatus:   http.StatusForbidden,
			wantLocation: access.DashboardPath,
			wantBody:     access.DisabledReason,
		},
		{
			name:       "allowed",
			session:    signedIn(roles.HR),
			path:       "/employees/42",
			wantStatus: http.StatusOK,
			wantBody:   "user 7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			collector, err := metrics.New(prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("metrics.New() error = %v", err)
			}
			g := access.NewGuard(session(tt.session), tt.flags, access.WithMetrics(collector))

			r := chi.NewRouter()
			r.With(g.Require(roles.Admin, roles.HR)).Get("/employees/{id}", func(w http.ResponseWriter, r *http.Request) {
				u := sessioninfo.UserFromCtx(r.Context())
				_, _ = w.Write([]byte("user " + strconv.FormatInt(u.ID, 10) + " opened employee " + chi.URLParam(r, "id")))
			})
			r.With(g.Require(roles.Admin, roles.HR)).Get("/employees", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") != "1" {
				t.Errorf("Retry-After = %q, want %q", rec.Header().Get("Retry-After"), "1")
			}
		})
	}
}

func TestGuard_RetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		retryAfter time.Duration
		want       string
	}{
		{name: "sub-second rounds up", retryAfter: 250 * time.Millisecond, want: "1"},
		{name: "zero is at least one second", retryAfter: 0, want: "1"},
		{name: "whole seconds", retryAfter: 3 * time.Second, want: "3"},
		{name: "fraction rounds up", retryAfter: 2500 * time.Millisecond, want: "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loading := session(sessioninfo.Snapshot{State: sessioninfo.Restoring})
			g := access.NewGuard(loading, flags{}, access.WithRetryAfter(tt.retryAfter))
			h := g.Require()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}
