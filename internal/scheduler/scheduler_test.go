package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/barbershop-scheduling/internal/observability"
	redisclient "github.com/hackgods/barbershop-scheduling/internal/redis"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(repo, opts...), repo
}

func TestScenario_RegisterBookCancelList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)

	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)

	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.NoError(t, err)

	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrSlotTaken)

	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.NoError(t, err)

	appts, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Empty(t, appts)

	_, err = s.BookAppointment(ctx, "Bob", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrUnknownCustomer)
}

func TestRegisterCustomer_PhoneGate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)

	_, err := s.RegisterCustomer(ctx, "Ana", "555-1234")
	require.ErrorIs(t, err, ErrInvalidPhoneFormat)
	require.True(t, IsRejection(err))

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Empty(t, customers)

	c, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)
	require.Equal(t, CustomerID(1), c.ID)
	require.Equal(t, "Ana", c.Name)

	customers, err = s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
}

func TestListCustomers_EmptyIsNotNil(t *testing.T) {
	s, _ := newTestScheduler(t)
	customers, err := s.ListCustomers(context.Background())
	require.NoError(t, err)
	require.NotNil(t, customers)
	require.Empty(t, customers)
}

func TestListCustomers_InsertionOrderWithDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)

	for _, name := range []string{"Carla", "ana", "Ana"} {
		_, err := s.RegisterCustomer(ctx, name, "(11) 91234-5678")
		require.NoError(t, err)
	}

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	require.Equal(t, []string{"Carla", "ana", "Ana"}, []string{customers[0].Name, customers[1].Name, customers[2].Name})
	require.NotEqual(t, customers[1].ID, customers[2].ID)
}

func TestBookAppointment_ResolvesLatestCaseInsensitiveMatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)

	first, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)
	second, err := s.RegisterCustomer(ctx, "ANA", "(21) 99876-5432")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	appt, err := s.BookAppointment(ctx, "ana", "2999-01-01 10:00")
	require.NoError(t, err)
	require.Equal(t, second.ID, appt.CustomerID)
	require.Equal(t, "ANA", appt.CustomerName)
}

func TestBookAppointment_UnknownCustomerNeverCreates(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestScheduler(t)

	_, err := s.BookAppointment(ctx, "Nobody", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrUnknownCustomer)

	// unknown customer wins over a bad date
	_, err = s.BookAppointment(ctx, "Nobody", "garbage")
	require.ErrorIs(t, err, ErrUnknownCustomer)

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	require.Empty(t, appts)
}

func TestBookAppointment_RejectsPastAndMalformed(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)
	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)

	cases := []struct {
		slot string
		want error
	}{
		{"2026-10-19 11:59", ErrDateTimeInPast},
		{"2000-01-01 10:00", ErrDateTimeInPast},
		{"2999-01-01", ErrDateTimeMalformed},
		{"2999-13-01 10:00", ErrDateTimeMalformed},
		{"01/01/2999 10:00", ErrDateTimeMalformed},
	}
	for _, c := range cases {
		_, err := s.BookAppointment(ctx, "Ana", c.slot)
		require.ErrorIs(t, err, c.want, c.slot)
		require.ErrorIs(t, err, ErrInvalidDateTime, c.slot)
		require.Equal(t, "invalid_datetime", ReasonCode(err))
	}

	appt, err := s.BookAppointment(ctx, "Ana", "2026-10-19 12:00")
	require.NoError(t, err, "the current minute is not in the past")
	require.Equal(t, testNow, appt.StartsAt)
}

func TestBookAppointment_SlotTakenByAnotherCustomer(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)
	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)
	_, err = s.RegisterCustomer(ctx, "Bruno", "(11) 98888-7777")
	require.NoError(t, err)

	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.NoError(t, err)

	_, err = s.BookAppointment(ctx, "Bruno", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrSlotTaken)

	appts, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, "Ana", appts[0].CustomerName)
}

func TestCancelAppointment(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)
	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)
	_, err = s.RegisterCustomer(ctx, "Bruno", "(11) 98888-7777")
	require.NoError(t, err)

	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.NoError(t, err)

	removed, err := s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.NoError(t, err)
	require.Equal(t, "Ana", removed.CustomerName)

	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrAppointmentNotFound)

	// slot is free again for anyone
	appt, err := s.BookAppointment(ctx, "Bruno", "2999-01-01 10:00")
	require.NoError(t, err)
	require.Equal(t, "Bruno", appt.CustomerName)

	// customer registry untouched
	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
}

func TestListAppointments_SortedBySlot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)
	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)

	slots := []string{
		"2999-01-02 09:00",
		"2027-05-01 23:30",
		"2999-01-01 10:00",
		"2999-01-01 09:59",
		"2030-12-31 00:00",
	}
	for _, slot := range slots {
		_, err := s.BookAppointment(ctx, "Ana", slot)
		require.NoError(t, err)
	}

	appts, err := s.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, len(slots))

	got := make([]string, len(appts))
	for i, a := range appts {
		got[i] = a.Slot
		if i > 0 {
			require.False(t, a.StartsAt.Before(appts[i-1].StartsAt))
		}
	}
	want := append([]string(nil), slots...)
	sort.Strings(want)
	require.Equal(t, want, got)
}

func TestBookAppointment_ConcurrentSameSlotOneWinner(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestScheduler(t)
	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
		other   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrSlotTaken):
				taken++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	require.Equal(t, 1, success)
	require.Equal(t, workers-1, taken)

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 1)
}

func TestEvents_RecordedForMutations(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestScheduler(t)

	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)
	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.NoError(t, err)
	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrSlotTaken)
	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.NoError(t, err)

	events := repo.Events()
	require.Len(t, events, 3)
	require.Equal(t, EventCustomerRegistered, events[0].EventType)
	require.Equal(t, EventAppointmentBooked, events[1].EventType)
	require.Equal(t, EventAppointmentCancelled, events[2].EventType)
	require.JSONEq(t, `{"customer_id":1,"name":"Ana"}`, string(events[0].Payload))
	require.NotContains(t, string(events[0].Payload), "91234")
	require.NotNil(t, events[1].Slot)
	require.Equal(t, "2999-01-01 10:00", *events[1].Slot)
	require.JSONEq(t, `{"slot":"2999-01-01 10:00","customer_id":1,"customer_name":"Ana"}`, string(events[1].Payload))
}

func TestMetrics_OutcomesRecorded(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	s, _ := newTestScheduler(t, WithMetrics(m))

	_, _ = s.RegisterCustomer(ctx, "Ana", "bad")
	_, _ = s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	_, _ = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	_, _ = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")

	count, err := testutil.GatherAndCount(reg, "barbershop_scheduler_operations_total")
	require.NoError(t, err)
	require.Equal(t, 4, count) // register:{invalid_phone_format,ok} book:{ok,slot_taken}
}

type fakeRepo struct {
	createCustomerFn    func(ctx context.Context, c Customer) (*Customer, error)
	listCustomersFn     func(ctx context.Context) ([]Customer, error)
	findCustomerFn      func(ctx context.Context, name string) (*Customer, error)
	getAppointmentFn    func(ctx context.Context, slot string) (*Appointment, error)
	createAppointmentFn func(ctx context.Context, a Appointment) (*Appointment, error)
	deleteAppointmentFn func(ctx context.Context, slot string) (*Appointment, error)
	listAppointmentsFn  func(ctx context.Context) ([]Appointment, error)
	pingFn              func(ctx context.Context) error
}

func (f *fakeRepo) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	if f.createCustomerFn == nil {
		panic("CreateCustomer not configured")
	}
	return f.createCustomerFn(ctx, c)
}

func (f *fakeRepo) ListCustomers(ctx context.Context) ([]Customer, error) {
	if f.listCustomersFn == nil {
		panic("ListCustomers not configured")
	}
	return f.listCustomersFn(ctx)
}

func (f *fakeRepo) FindLatestCustomerByName(ctx context.Context, name string) (*Customer, error) {
	if f.findCustomerFn == nil {
		panic("FindLatestCustomerByName not configured")
	}
	return f.findCustomerFn(ctx, name)
}

func (f *fakeRepo) GetAppointment(ctx context.Context, slot string) (*Appointment, error) {
	if f.getAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getAppointmentFn(ctx, slot)
}

func (f *fakeRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if f.createAppointmentFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.createAppointmentFn(ctx, a)
}

func (f *fakeRepo) DeleteAppointment(ctx context.Context, slot string) (*Appointment, error) {
	if f.deleteAppointmentFn == nil {
		panic("DeleteAppointment not configured")
	}
	return f.deleteAppointmentFn(ctx, slot)
}

func (f *fakeRepo) ListAppointments(ctx context.Context) ([]Appointment, error) {
	if f.listAppointmentsFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listAppointmentsFn(ctx)
}

func (f *fakeRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

func TestBackendFailuresAreDistinctFromRejections(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")

	s := New(&fakeRepo{
		createCustomerFn: func(ctx context.Context, c Customer) (*Customer, error) { return nil, down },
		listCustomersFn:  func(ctx context.Context) ([]Customer, error) { return nil, down },
		findCustomerFn:   func(ctx context.Context, name string) (*Customer, error) { return nil, down },
		deleteAppointmentFn: func(ctx context.Context, slot string) (*Appointment, error) {
			return nil, down
		},
		listAppointmentsFn: func(ctx context.Context) ([]Appointment, error) { return nil, down },
		pingFn:             func(ctx context.Context) error { return down },
	}, WithClock(fixedClock))

	_, err := s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	requireBackendError(t, err, down)

	_, err = s.ListCustomers(ctx)
	requireBackendError(t, err, down)

	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	requireBackendError(t, err, down)

	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	requireBackendError(t, err, down)

	_, err = s.ListAppointments(ctx)
	requireBackendError(t, err, down)

	requireBackendError(t, s.Ping(ctx), down)

	// input rejections still win before the backend is touched
	_, err = s.RegisterCustomer(ctx, "Ana", "555-1234")
	require.ErrorIs(t, err, ErrInvalidPhoneFormat)
}

func TestBookAppointment_BackendFailureDuringSlotCheck(t *testing.T) {
	down := errors.New("timeout")
	s := New(&fakeRepo{
		findCustomerFn: func(ctx context.Context, name string) (*Customer, error) {
			return &Customer{ID: 7, Name: "Ana"}, nil
		},
		getAppointmentFn: func(ctx context.Context, slot string) (*Appointment, error) { return nil, down },
	}, WithClock(fixedClock))

	_, err := s.BookAppointment(context.Background(), "Ana", "2999-01-01 10:00")
	requireBackendError(t, err, down)
	var bErr *BackendError
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, "check slot", bErr.Op)
}

func TestBookAppointment_StoreConflictIsSlotTaken(t *testing.T) {
	s := New(&fakeRepo{
		findCustomerFn: func(ctx context.Context, name string) (*Customer, error) {
			return &Customer{ID: 7, Name: "Ana"}, nil
		},
		getAppointmentFn: func(ctx context.Context, slot string) (*Appointment, error) {
			return nil, ErrAppointmentNotFound
		},
		createAppointmentFn: func(ctx context.Context, a Appointment) (*Appointment, error) {
			return nil, ErrSlotTaken
		},
	}, WithClock(fixedClock))

	_, err := s.BookAppointment(context.Background(), "Ana", "2999-01-01 10:00")
	require.ErrorIs(t, err, ErrSlotTaken)
	require.NotErrorIs(t, err, ErrBackendUnavailable)
}

func requireBackendError(t *testing.T, err, cause error) {
	t.Helper()
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.ErrorIs(t, err, cause)
	require.False(t, IsRejection(err))
	require.Equal(t, "backend_unavailable", ReasonCode(err))
}

func TestWithLocker_RedisSerializesAndReportsBusySlot(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	ctx := context.Background()
	s, _ := newTestScheduler(t, WithLocker(redisclient.NewRedisSlotLocker(client, 5*time.Second, nil)))
	_, err = s.RegisterCustomer(ctx, "Ana", "(11) 91234-5678")
	require.NoError(t, err)

	appt, err := s.BookAppointment(ctx, "Ana", "2999-01-01 10:00")
	require.NoError(t, err)
	require.Equal(t, "2999-01-01 10:00", appt.Slot)
	require.False(t, m.Exists("lock:slot:2999-01-01 10:00"))

	// another process holds the lock on this slot
	require.NoError(t, m.Set("lock:slot:2999-01-01 11:00", "other-process"))
	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 11:00")
	require.ErrorIs(t, err, ErrSlotBeingBooked)
	require.True(t, IsRejection(err))

	_, err = s.CancelAppointment(ctx, "2999-01-01 10:00")
	require.NoError(t, err)

	m.Close()
	_, err = s.BookAppointment(ctx, "Ana", "2999-01-01 12:00")
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestReasonCode(t *testing.T) {
	require.Equal(t, "ok", ReasonCode(nil))
	require.Equal(t, "slot_taken", ReasonCode(ErrSlotTaken))
	require.Equal(t, "unknown_customer", ReasonCode(ErrUnknownCustomer))
	require.Equal(t, "appointment_not_found", ReasonCode(ErrAppointmentNotFound))
	require.Equal(t, "invalid_phone_format", ReasonCode(ErrInvalidPhoneFormat))
	require.Equal(t, "internal_error", ReasonCode(errors.New("x")))
	require.False(t, IsRejection(errors.New("x")))
}
