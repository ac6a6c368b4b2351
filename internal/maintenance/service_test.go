package maintenance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "maintenance-test"})
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	worse := &testJob{name: "fail-too", err: errors.New("bang")}
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(ok, bad, worse),
		Lock:     NewLocalLock(),
		Metrics:  metrics.NewMaintenanceMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "fail: boom") || !strings.Contains(err.Error(), "fail-too: bang") {
		t.Fatalf("expected combined job errors, got %v", err)
	}
	for _, job := range []*testJob{ok, bad, worse} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
	}
	n, err := testutil.GatherAndCount(reg, "register_maintenance_job_failure_total")
	if err != nil || n != 2 {
		t.Fatalf("expected failure series for two jobs, got %d (%v)", n, err)
	}
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	lock := NewLocalLock()
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected to acquire fresh lock")
	}
	job := &testJob{name: "never"}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: NewRegistry(job), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run while another cycle holds the lock")
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: NewLocalLock()}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRegistryStoresJobs(t *testing.T) {
	a, b := &testJob{name: "a"}, &testJob{name: "b"}
	registry := NewRegistry(a, nil)
	registry.Register(b)
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != a || jobs[1] != b {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

type fakeRedis struct {
	values map[string]string
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockOwnership(t *testing.T) {
	store := &fakeRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "reg:lock:maintenance", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "reg:lock:maintenance", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); !ok || err != nil {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values["reg:lock:maintenance"]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after owner release")
	}

	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected nil client error")
	}
}
