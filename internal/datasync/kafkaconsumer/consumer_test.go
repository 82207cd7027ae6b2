package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/urbansphere/internal/core/config"
	"github.com/mohammed-shakir/urbansphere/internal/dataset/redistable"
	"github.com/mohammed-shakir/urbansphere/internal/datasync"
)

const doc = `{"type":"FeatureCollection","name":"states_india_water","features":[
{"type":"Feature","properties":{"st_nm":"Goa","Safe_drinking_2011 Total":85.7},"geometry":{"type":"Point","coordinates":[74,15.4]}}]}`

type fakeStore struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	puts      []string
	dels      []string
}

func (f *fakeStore) Put(_ context.Context, table string, _ []byte, seq uint64) error {
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	f.mu.Lock()
	f.puts = append(f.puts, fmt.Sprintf("%s@%d", table, seq))
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Delete(_ context.Context, table string, _ uint64) error {
	f.mu.Lock()
	f.dels = append(f.dels, table)
	f.mu.Unlock()
	return nil
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "urbansphere-datasets" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func putBytes(table string, seq uint64) []byte {
	return putFrom("ingest", table, seq, doc)
}

func putFrom(source, table string, seq uint64, d string) []byte {
	b, _ := json.Marshal(datasync.NewPut(source, table, seq, []byte(d), time.Now()))
	return b
}

func msg(off int64, v []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "urbansphere-datasets", Partition: 0, Offset: off, Value: v}
}

func newConsumerForTest(t *testing.T, st TableWriter) *Consumer {
	t.Helper()
	c, err := New(Config{Brokers: []string{"x"}, Topic: "urbansphere-datasets", GroupID: "g", DedupeSize: 16}, slog.Default(), st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFromConfig_Defaults(t *testing.T) {
	cfg := FromConfig(config.DatasyncCfg{Brokers: []string{"a:9092"}, Topic: "t", GroupID: "g"})
	if cfg.DedupeSize != 4096 || !cfg.InitialOffsetOldest || cfg.SessionTimeout != 30*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Fatalf("expected error without a store")
	}
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(t, st)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- msg(10, putBytes("states_india_water", 1))
	ch <- msg(11, putBytes("states_india_water", 2))
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if len(st.puts) != 2 || st.puts[1] != "states_india_water@2" {
		t.Fatalf("puts=%v", st.puts)
	}
}

func TestStaleAndDuplicateEventsAreSkipped(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(t, st)
	ctx := context.Background()

	for i, seq := range []uint64{5, 5, 3, 6} {
		if err := c.ProcessOne(ctx, msg(int64(i), putBytes("states_india_air", seq))); err != nil {
			t.Fatalf("seq %d: %v", seq, err)
		}
	}
	if len(st.puts) != 2 || st.puts[0] != "states_india_air@5" || st.puts[1] != "states_india_air@6" {
		t.Fatalf("puts=%v", st.puts)
	}
}

func TestMalformedEventsAreDroppedAndMarked(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(t, st)

	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- msg(1, []byte("{"))
	ch <- msg(2, []byte(`{"version":1,"op":"delete","source":"s","table":"t"}`))
	close(ch)

	g := &groupHandler{process: c.ProcessOne}
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 {
		t.Fatalf("malformed events must be marked; marked=%v", s.marked)
	}
	if len(st.puts)+len(st.dels) != 0 {
		t.Fatalf("store touched: puts=%v dels=%v", st.puts, st.dels)
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	st := &fakeStore{}
	st.failFirst.Store(true)
	c := newConsumerForTest(t, st)
	ctx := context.Background()

	m := msg(5, putBytes("states_india_water", 1))
	if err := c.ProcessOne(ctx, m); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- m
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
	if len(st.puts) != 1 {
		t.Fatalf("puts=%v", st.puts)
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(t, st)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- msg(1, putBytes("states_india_air", 1))
	p0 <- msg(2, putBytes("states_india_air", 2))
	p1 <- msg(1, putBytes("states_india_water", 1))
	p1 <- msg(2, putBytes("states_india_water", 2))
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestAppliesToRedisTableStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redistable.NewClient(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	store := redistable.NewStore(rc, "dash")
	c := newConsumerForTest(t, store)

	if err := c.ProcessOne(ctx, msg(1, putBytes("states_india_water", 3))); err != nil {
		t.Fatalf("put: %v", err)
	}
	tbl, err := store.Fetch(ctx, "", "states_india_water")
	if err != nil || len(tbl.Rows) != 1 {
		t.Fatalf("Fetch: tbl=%+v err=%v", tbl, err)
	}

	bad, _ := json.Marshal(datasync.NewPut("ingest", "states_india_water", 4, []byte(`{"type":"FeatureCollection","features":"none"}`), time.Now()))
	if err := c.ProcessOne(ctx, msg(2, bad)); err != nil {
		t.Fatalf("unreadable document must be dropped, got %v", err)
	}

	del, _ := json.Marshal(datasync.NewDelete("ingest", "states_india_water", 5, time.Now()))
	if err := c.ProcessOne(ctx, msg(3, del)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tables, err := store.Tables(ctx)
	if err != nil || len(tables) != 0 {
		t.Fatalf("tables=%v err=%v", tables, err)
	}
}

func TestSourcesShareOneTableSequence(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(t, st)
	ctx := context.Background()

	if err := c.ProcessOne(ctx, msg(1, putFrom("census", "states_india_water", 100, doc))); err != nil {
		t.Fatalf("census put: %v", err)
	}
	if err := c.ProcessOne(ctx, msg(2, putFrom("ingest", "states_india_water", 5, doc))); err != nil {
		t.Fatalf("ingest put: %v", err)
	}
	if len(st.puts) != 1 || st.puts[0] != "states_india_water@100" {
		t.Fatalf("older event from another source was applied: puts=%v", st.puts)
	}
}

const goaDoc = `{"type":"FeatureCollection","name":"states_india_water","features":[
{"type":"Feature","properties":{"st_nm":"Goa","Safe_drinking_2011 Total":99.1},"geometry":{"type":"Point","coordinates":[74,15.4]}}]}`

const airDoc = `{"type":"FeatureCollection","name":"states_india_air","features":[
{"type":"Feature","properties":{"st_nm":"Goa","AQI":52},"geometry":{"type":"Point","coordinates":[74,15.4]}}]}`

func TestStoreSequenceWinsOverForgottenEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redistable.NewClient(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	store := redistable.NewStore(rc, "dash")

	first := newConsumerForTest(t, store)
	if err := first.ProcessOne(ctx, msg(1, putFrom("census", "states_india_water", 100, goaDoc))); err != nil {
		t.Fatalf("put@100: %v", err)
	}

	// a fresh consumer has an empty LRU, as after a restart
	restarted := newConsumerForTest(t, store)
	if err := restarted.ProcessOne(ctx, msg(2, putFrom("ingest", "states_india_water", 5, doc))); err != nil {
		t.Fatalf("stale put must be dropped, got %v", err)
	}
	del, _ := json.Marshal(datasync.NewDelete("ingest", "states_india_water", 50, time.Now()))
	if err := restarted.ProcessOne(ctx, msg(3, del)); err != nil {
		t.Fatalf("stale delete must be dropped, got %v", err)
	}

	// DedupeSize 1: the second table evicts the first from the LRU
	small, err := New(Config{DedupeSize: 1}, slog.Default(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := small.ProcessOne(ctx, msg(4, putFrom("census", "states_india_water", 101, goaDoc))); err != nil {
		t.Fatalf("put@101: %v", err)
	}
	if err := small.ProcessOne(ctx, msg(5, putFrom("census", "states_india_air", 1, airDoc))); err != nil {
		t.Fatalf("air put: %v", err)
	}
	if err := small.ProcessOne(ctx, msg(6, putFrom("ingest", "states_india_water", 7, doc))); err != nil {
		t.Fatalf("evicted stale put must be dropped, got %v", err)
	}

	tbl, err := store.Fetch(ctx, "", "states_india_water")
	if err != nil || len(tbl.Rows) != 1 {
		t.Fatalf("Fetch: tbl=%+v err=%v", tbl, err)
	}
	if v := tbl.Rows[0].Attributes["Safe_drinking_2011 Total"]; v != 99.1 {
		t.Fatalf("newest document was replaced, value=%v", v)
	}
	wm, _, _ := store.Watermark(ctx, "states_india_water")
	if wm != 101 {
		t.Fatalf("watermark=%d want 101", wm)
	}
}
