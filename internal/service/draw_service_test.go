package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

func TestLoadFillsEmptyStoreFromSource(t *testing.T) {
	src := &fakeSource{draws: testDraws()}
	store := &fakeDrawStore{}
	cache := &fakeFreqCache{}
	svc := NewDrawService(src, store, cache, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	ds, err := svc.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Draws) != 3 || len(store.draws) != 3 {
		t.Fatalf("draws=%d stored=%d", len(ds.Draws), len(store.draws))
	}
	if ds.Frequency.Get(14) != 3 || ds.Frequency.Get(9) != 1 {
		t.Errorf("frequency = %v", ds.Frequency)
	}
	if cache.sets != 1 || cache.stamp != (domain.FrequencyStamp{Draws: 3, Latest: 3}) {
		t.Errorf("cache sets=%d stamp=%+v", cache.sets, cache.stamp)
	}
	if _, ok := ds.Costs[15]; !ok {
		t.Error("costs not attached")
	}

	// second load is served by the store and the cache
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 || cache.sets != 1 {
		t.Errorf("source calls=%d cache sets=%d", src.calls, cache.sets)
	}
}

func TestLoadDegradesWhenSourceUnavailable(t *testing.T) {
	src := &fakeSource{err: domain.ErrDataSourceUnavailable}
	svc := NewDrawService(src, nil, nil, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	ds, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Draws) != 0 || len(ds.Frequency) != 0 {
		t.Fatalf("expected empty dataset, got %+v", ds)
	}
}

func TestLoadPropagatesOtherErrors(t *testing.T) {
	src := &fakeSource{err: context.DeadlineExceeded}
	svc := NewDrawService(src, nil, nil, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	if _, err := svc.Load(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefresh(t *testing.T) {
	src := &fakeSource{draws: testDraws()}
	store := &fakeDrawStore{}
	cache := &fakeFreqCache{freq: domain.FrequencyTable{1: 1}, stamp: domain.FrequencyStamp{Draws: 1, Latest: 1}}
	bus := &fakeBus{}
	svc := NewDrawService(src, store, cache, nil, bus, domain.DefaultCostTable(), nil, discardLogger())

	n, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(store.draws) != 3 {
		t.Fatalf("n=%d stored=%d", n, len(store.draws))
	}
	if cache.invalidated != 1 {
		t.Error("cache not invalidated")
	}
	if len(bus.channels) != 1 || bus.channels[0] != domain.ChannelDraws {
		t.Fatalf("published %v", bus.channels)
	}
	var ev domain.DrawsEvent
	if err := json.Unmarshal(bus.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != domain.EventDrawsRefreshed || ev.Latest != 3 || ev.Count != 3 {
		t.Errorf("event = %+v", ev)
	}

	src.err = domain.ErrDataSourceUnavailable
	if _, err := svc.Refresh(context.Background()); !errors.Is(err, domain.ErrDataSourceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSummary(t *testing.T) {
	store := &fakeDrawStore{}
	svc := NewDrawService(&fakeSource{}, store, nil, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	sum, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 0 || sum.Latest != nil {
		t.Fatalf("empty summary = %+v", sum)
	}

	store.draws = testDraws()
	sum, err = svc.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 3 || sum.Latest == nil || sum.Latest.Contest != 3 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestFrequencyPrefersCache(t *testing.T) {
	src := &fakeSource{draws: testDraws()}
	cache := &fakeFreqCache{freq: domain.FrequencyTable{7: 42}, stamp: domain.FrequencyStamp{Draws: 99, Latest: 99}}
	svc := NewDrawService(src, nil, cache, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	freq, n, err := svc.Frequency(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 99 || freq.Get(7) != 42 || src.calls != 0 {
		t.Fatalf("freq=%v n=%d calls=%d", freq, n, src.calls)
	}
}

func TestLoadRecomputesWhenCacheStampDiffers(t *testing.T) {
	store := &fakeDrawStore{draws: testDraws()}
	stale := domain.FrequencyTable{7: 42}
	// same count, different latest contest
	cache := &fakeFreqCache{freq: stale, stamp: domain.FrequencyStamp{Draws: 3, Latest: 2}}
	svc := NewDrawService(&fakeSource{}, store, cache, nil, nil, domain.DefaultCostTable(), nil, discardLogger())

	ds, err := svc.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ds.Frequency.Get(7) == 42 || ds.Frequency.Get(14) != 3 {
		t.Fatalf("stale table reused: %v", ds.Frequency)
	}
	if cache.sets != 1 || cache.stamp != (domain.FrequencyStamp{Draws: 3, Latest: 3}) {
		t.Fatalf("cache sets=%d stamp=%+v", cache.sets, cache.stamp)
	}

	// a matching stamp is served from the cache
	cache.freq = stale
	ds, err = svc.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ds.Frequency.Get(7) != 42 || cache.sets != 1 {
		t.Fatalf("cache not reused: freq=%v sets=%d", ds.Frequency, cache.sets)
	}
}
