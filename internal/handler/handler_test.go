package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/rentroll/internal/activity"
	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/report"
	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/signals"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

var asOf = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *store.MemoryStore
	activity *activity.MemoryStore
	router   http.Handler
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	act := activity.NewMemoryStore()
	deps := Deps{
		Store:    st,
		Recorder: event.NewActivityRecorder(act),
		Policy:   schedule.DefaultPolicy(),
		Location: time.UTC,
		Now:      func() time.Time { return asOf },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	r := chi.NewRouter()
	lh := NewLeaseHandler(deps)
	r.Put("/v1/leases/{id}", lh.HandlePut)
	r.Get("/v1/leases/{id}", lh.HandleGet)
	r.Get("/v1/leases", lh.HandleList)
	r.Post("/v1/leases/{id}/end", lh.HandleEnd)
	r.Get("/v1/leases/{id}/schedule", lh.HandleSchedule)
	ph := NewPaymentHandler(deps)
	r.Put("/v1/payments/{id}", ph.HandlePut)
	r.Get("/v1/payments", ph.HandleList)
	r.Post("/v1/payments/{id}/status", ph.HandleStatus)
	proph := NewPropertyHandler(deps)
	r.Put("/v1/units/{id}", proph.HandlePutUnit)
	r.Get("/v1/properties/{id}", proph.HandleGetProperty)
	r.Put("/v1/properties/{id}", proph.HandlePutProperty)
	r.Get("/v1/tenants/{id}/occupancy", NewTenantHandler(deps).HandleOccupancy)
	r.Get("/v1/reports/rent-roll", NewReportHandler(deps, nil).HandleRentRoll)
	ah := NewActivityHandler(act)
	r.Get("/v1/activity/search", ah.HandleSearchActivity)
	r.Get("/v1/activity/summary/{entity_type}/{entity_id}", ah.HandleGetSignalSummary)
	r.Get("/v1/activity/{entity_type}/{entity_id}", ah.HandleGetEntityActivity)

	return &testEnv{store: st, activity: act, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["code"]
}

func (e *testEnv) seedSchedule(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.UpsertLease(ctx, types.Lease{
		ID: "l1", Unit: "u1", Tenant: "t1",
		LeaseStartDate: "2024-01-01", LeaseEndDate: "2024-06-30",
		MonthlyRent: decimal.NewFromInt(1000), Status: types.LeaseActive,
	}))
	payments := []types.Payment{
		{ID: "p1", Amount: decimal.NewFromInt(1000), Status: types.PaymentSucceeded, Metadata: types.PaymentMetadata{Month: "January 2024", UnitID: "u1"}},
		{ID: "p2", Amount: decimal.NewFromInt(1000), Status: types.PaymentFailed, Metadata: types.PaymentMetadata{Month: "February 2024", UnitID: "u1"}},
		{ID: "p3", Amount: decimal.NewFromInt(1000), Status: types.PaymentPending, Metadata: types.PaymentMetadata{Month: "March 2024", UnitID: "u2"}},
	}
	for _, p := range payments {
		require.NoError(t, e.store.UpsertPayment(ctx, p))
	}
}

func TestPutLease(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/v1/leases/l1", map[string]any{
		"unit": "u1", "tenant": "t1",
		"leaseStartDate": "2024-01-01", "leaseEndDate": "2024-12-31",
		"monthlyRent": "1200.00", "status": "ACTIVE",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := env.store.GetLease(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, types.ID("u1"), got.Unit)
	assert.True(t, got.MonthlyRent.Equal(decimal.NewFromInt(1200)))

	entries, _, total, err := env.activity.QueryByEntity(context.Background(), "lease", "l1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, event.TypeLeaseUpdated, entries[0].EventType)
}

func TestPutLease_Rejects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v1/leases/l1", map[string]any{
		"tenant": "t1", "leaseStartDate": "2024-01-01", "leaseEndDate": "2024-12-31",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/v1/leases/l1", map[string]any{
		"unit": "u1", "tenant": "t1", "leaseStartDate": "first of May", "leaseEndDate": "2024-12-31",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_DATE", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/v1/leases/l1", map[string]any{
		"unit": "u1", "tenant": "t1", "leaseStartDate": "2024-01-01", "leaseEndDate": "2024-12-31", "status": "PAUSED",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/v1/leases/l1", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, rec))
}

func TestGetLease_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/leases/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestListLeases_FiltersAndPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, l := range []types.Lease{
		{ID: "a", Tenant: "t1", Unit: "u1"},
		{ID: "b", Tenant: "t2", Unit: "u2"},
		{ID: "c", Tenant: "t1", Unit: "u3"},
	} {
		require.NoError(t, env.store.UpsertLease(ctx, l))
	}

	rec := env.do(t, http.MethodGet, "/v1/leases?tenant=t1&page_size=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[listResponse[types.Lease]](t, rec)
	assert.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, types.ID("c"), resp.Items[0].ID)
}

func TestEndLease(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodPost, "/v1/leases/l1/end", map[string]any{
		"status": "TERMINATED", "terminatedDate": "2024-03-15", "moveOutDate": "2024-03-18",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[types.Lease](t, rec)
	assert.Equal(t, types.LeaseTerminated, got.Status)
	assert.Equal(t, "2024-03-18", got.MoveOutDate)

	entries, _, _, err := env.activity.QueryByEntity(context.Background(), "tenant", "t1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, event.TypeLeaseEnded, entries[0].EventType)

	rec = env.do(t, http.MethodPost, "/v1/leases/l1/end", map[string]any{"status": "ENDED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/leases/l1/end", map[string]any{"status": "ACTIVE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaseSchedule(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ScheduleResponse](t, rec)

	assert.Equal(t, types.ID("u1"), resp.UnitID)
	assert.Equal(t, "2024-03-20", resp.AsOf)
	require.Len(t, resp.Entries, 6)
	want := []schedule.Status{
		schedule.StatusPaid, schedule.StatusFailed, schedule.StatusOverdue,
		schedule.StatusUpcoming, schedule.StatusUpcoming, schedule.StatusUpcoming,
	}
	for i, e := range resp.Entries {
		assert.Equal(t, want[i], e.Status, e.Month)
	}
	assert.True(t, resp.Entries[2].IsCurrentMonth)
	assert.Nil(t, resp.Entries[2].Payment, "payment on another unit must not match")
	assert.True(t, resp.Totals.Expected.Equal(decimal.NewFromInt(6000)))
	assert.True(t, resp.Totals.Paid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, resp.Totals.Outstanding.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 1, resp.Totals.LateMonths)
}

func TestLeaseSchedule_DueRuleAndAsOf(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule?due_rule=metadata_due_date", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, schedule.DueRulePaymentDueDate, resp.DueRule)
	assert.Equal(t, schedule.StatusDue, resp.Entries[1].Status)
	assert.Equal(t, schedule.StatusDue, resp.Entries[2].Status)
	assert.Equal(t, 2, resp.Totals.LateMonths)

	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule?as_of=2024-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ScheduleResponse](t, rec)
	assert.True(t, resp.Entries[0].IsCurrentMonth)
	assert.Equal(t, schedule.StatusFailed, resp.Entries[1].Status)
	assert.Equal(t, schedule.StatusUpcoming, resp.Entries[2].Status)

	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule?due_rule=whenever", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DUE_RULE", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule?as_of=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_AS_OF", errorCode(t, rec))
}

func TestLeaseSchedule_InvalidLeaseDate(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.UpsertLease(context.Background(), types.Lease{
		ID: "l1", Unit: "u1", LeaseStartDate: "2024-01-01", LeaseEndDate: "someday",
	}))
	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_DATE", errorCode(t, rec))
}

func TestPutPayment(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/v1/payments/p9", map[string]any{
		"amount": "1000", "status": "PENDING",
		"metadata": map[string]any{"month": "march  2024", "unitId": "u1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[types.Payment](t, rec)
	assert.Equal(t, "March 2024", got.Metadata.Month)

	entries, _, _, err := env.activity.QueryByEntity(context.Background(), "unit", "u1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, event.TypePaymentRecorded, entries[0].EventType)

	rec = env.do(t, http.MethodPut, "/v1/payments/p10", map[string]any{
		"amount": "1000", "status": "PENDING",
		"metadata": map[string]any{"month": "Smarch 2024", "unitId": "u1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_MONTH", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/v1/payments/p11", map[string]any{
		"amount": "1000", "status": "PENDING", "metadata": map[string]any{"month": "March 2024"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/v1/payments/p12", map[string]any{
		"amount": "0", "status": "PENDING", "metadata": map[string]any{"month": "March 2024", "unitId": "u1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "SUCCEEDED", "paidDate": "2024-03-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, _, _, err := env.activity.QueryByEntity(context.Background(), "payment", "p2", activity.DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, event.TypePaymentStatusUpdated, entries[0].EventType)

	// Same status again is not a change.
	rec = env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "SUCCEEDED"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, _, total, err := env.activity.QueryByEntity(context.Background(), "payment", "p2", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, schedule.StatusPaid, resp.Entries[1].Status)

	rec = env.do(t, http.MethodPost, "/v1/payments/nope/status", map[string]any{"status": "FAILED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPayments_ByUnits(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodGet, "/v1/payments?unit_id=u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[listResponse[types.Payment]](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, types.ID("p3"), resp.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/v1/payments?unit_id=u1,u2", nil)
	assert.Equal(t, 3, decode[listResponse[types.Payment]](t, rec).TotalCount)
}

func TestPropertyWithUnits(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/v1/properties/p1", map[string]any{"name": "Elm Court"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPut, "/v1/units/u1", map[string]any{"property": "p1", "unitNumber": "1A"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/properties/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prop := decode[types.Property](t, rec)
	assert.Equal(t, "Elm Court", prop.Name)
	require.Len(t, prop.Units, 1)
	assert.Equal(t, "1A", prop.Units[0].UnitNumber)

	rec = env.do(t, http.MethodPut, "/v1/properties/p2", map[string]any{"address": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantOccupancy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.UpsertProperty(ctx, types.Property{ID: "p9", Name: "Old Mill"}))
	require.NoError(t, env.store.UpsertUnit(ctx, types.Unit{ID: "u1", Property: "p1", Tenant: "t1"}))
	require.NoError(t, env.store.UpsertUnit(ctx, types.Unit{ID: "u9", Property: "p9", UnitNumber: "9C"}))
	require.NoError(t, env.store.UpsertLease(ctx, types.Lease{
		ID: "l1", Unit: "u1", Tenant: "t1", LeaseStartDate: "2024-01-01", LeaseEndDate: "2024-12-31",
		MonthlyRent: decimal.NewFromInt(1000), Status: types.LeaseActive,
	}))
	require.NoError(t, env.store.UpsertLease(ctx, types.Lease{
		ID: "l0", Unit: "u9", Tenant: "t1", LeaseStartDate: "2023-01-01", LeaseEndDate: "2023-12-31",
		MonthlyRent: decimal.NewFromInt(900), Status: types.LeaseEnded,
	}))

	rec := env.do(t, http.MethodGet, "/v1/tenants/t1/occupancy", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[occupancy.Result](t, rec)

	require.Len(t, res.Current, 1)
	assert.Equal(t, types.ID("u1"), res.Current[0].Unit.ID)
	assert.Len(t, res.Current[0].Schedule, 12)
	require.Len(t, res.Previous, 1)
	assert.Equal(t, types.ID("u9"), res.Previous[0].Unit.ID)
	require.Len(t, res.AllHistory, 1)
	require.NotNil(t, res.AllHistory[0].Property)
	assert.Equal(t, "Old Mill", res.AllHistory[0].Property.Name)
	require.NotNil(t, res.AllHistory[0].Unit)
	assert.Equal(t, "9C", res.AllHistory[0].Unit.UnitNumber)
}

func TestTenantOccupancy_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/tenants/nobody/occupancy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[occupancy.Result](t, rec)
	assert.Empty(t, res.Current)
	assert.Empty(t, res.Previous)
	assert.Empty(t, res.AllHistory)
}

func TestRentRollReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)

	rec := env.do(t, http.MethodGet, "/v1/reports/rent-roll?month=2024-02", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	roll := decode[report.RentRoll](t, rec)
	assert.Equal(t, "February 2024", roll.Month)
	require.Len(t, roll.Rows, 1)
	assert.Equal(t, schedule.StatusFailed, roll.Rows[0].Entry.Status)

	rec = env.do(t, http.MethodGet, "/v1/reports/rent-roll", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/reports/rent-roll?month=Feb", nil)
	assert.Equal(t, "INVALID_MONTH", errorCode(t, rec))
}

func TestActivityEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)
	env.do(t, http.MethodPost, "/v1/leases/l1/end", map[string]any{"status": "ENDED"})
	env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "SUCCEEDED"})

	rec := env.do(t, http.MethodGet, "/v1/activity/unit/u1?categories=payment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[struct {
		Activities []types.ActivityEntry `json:"activities"`
		TotalCount int                   `json:"total_count"`
	}](t, rec)
	assert.Equal(t, 1, feed.TotalCount)
	assert.Equal(t, event.TypePaymentStatusUpdated, feed.Activities[0].EventType)

	rec = env.do(t, http.MethodGet, "/v1/activity/search?q=ended", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}](t, rec)
	assert.Equal(t, 3, found.TotalCount) // lease, unit and tenant entries

	rec = env.do(t, http.MethodGet, "/v1/activity/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalSummary(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchedule(t)
	env.do(t, http.MethodPost, "/v1/payments/p1/status", map[string]any{"status": "FAILED"})
	env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "PENDING"})
	env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "FAILED"})

	rec := env.do(t, http.MethodGet, "/v1/activity/summary/unit/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[signals.Summary](t, rec)
	assert.Equal(t, 3, summary.Categories["payment"].SignalCount)
	assert.Equal(t, 2, summary.Categories["payment"].ByPolarity["negative"])
	assert.Equal(t, "critical", summary.OverallSentiment)
	require.NotEmpty(t, summary.Escalations)
	assert.Equal(t, "pay_failure_acute", summary.Escalations[len(summary.Escalations)-1].Rule.ID)
}

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, time.Hour)
}

func TestSchedule_CachedPerServiceDay(t *testing.T) {
	eastern := time.FixedZone("EST", -5*60*60)
	now := time.Date(2024, time.March, 20, 1, 0, 0, 0, time.UTC) // 19th in EST
	env := newTestEnv(t, func(d *Deps) {
		d.Cache = newRedisCache(t)
		d.Location = eastern
		d.Now = func() time.Time { return now }
	})
	require.NoError(t, env.store.UpsertLease(context.Background(), types.Lease{
		ID: "l1", Unit: "u1", Tenant: "t1",
		LeaseStartDate: "2024-01-19", LeaseEndDate: "2024-06-30",
		MonthlyRent: decimal.NewFromInt(1000), Status: types.LeaseActive,
	}))

	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, "2024-03-19", resp.AsOf)
	assert.Equal(t, schedule.StatusUpcoming, resp.Entries[2].Status)

	now = time.Date(2024, time.March, 20, 5, 0, 0, 0, time.UTC) // 20th in EST
	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[ScheduleResponse](t, rec)
	assert.Equal(t, "2024-03-20", resp.AsOf)
	assert.Equal(t, schedule.StatusOverdue, resp.Entries[2].Status)
}

func TestWritesInvalidateCachedSchedule(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Cache = newRedisCache(t) })
	env.seedSchedule(t)

	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schedule.StatusFailed, decode[ScheduleResponse](t, rec).Entries[1].Status)

	rec = env.do(t, http.MethodPost, "/v1/payments/p2/status", map[string]any{"status": "SUCCEEDED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schedule.StatusPaid, decode[ScheduleResponse](t, rec).Entries[1].Status)
}

func TestSchedule_ServedWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, func(d *Deps) { d.Cache = cache.New(client, time.Hour) })
	env.seedSchedule(t)
	mr.Close()

	rec := env.do(t, http.MethodGet, "/v1/leases/l1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ScheduleResponse](t, rec)
	require.Len(t, resp.Entries, 6)
	assert.Equal(t, schedule.StatusPaid, resp.Entries[0].Status)
}
