package manager

import "testing"

func TestBroadcasterFanOutAndDrop(t *testing.T) {
	b := NewBroadcaster()
	fast, cancelFast := b.Subscribe(4)
	slow, cancelSlow := b.Subscribe(1)
	defer cancelFast()

	b.Publish(Event{Name: "a"})
	b.Publish(Event{Name: "b"})
	if e := <-fast; e.Name != "a" {
		t.Fatalf("fast got %q", e.Name)
	}
	if e := <-fast; e.Name != "b" {
		t.Fatalf("fast got %q", e.Name)
	}
	if e := <-slow; e.Name != "a" {
		t.Fatalf("slow got %q", e.Name)
	}
	if b.Missed() != 1 {
		t.Fatalf("missed=%d", b.Missed())
	}
	cancelSlow()
	cancelSlow()
	if _, ok := <-slow; ok {
		t.Fatalf("expected closed channel")
	}
	if b.Subscribers() != 1 {
		t.Fatalf("subscribers=%d", b.Subscribers())
	}
}

func TestMultiPublisher(t *testing.T) {
	a, c := NewMemoryPublisher(), NewMemoryPublisher()
	MultiPublisher{a, nil, c}.Publish(Event{Name: EventSelect})
	if len(a.Events()) != 1 || len(c.Events()) != 1 {
		t.Fatalf("fan-out failed")
	}
}

func TestSetEventPublisher(t *testing.T) {
	m := New(newRecChannel(), "Llama-3.2-1B-Instruct-q4f16_1-MLC")
	pub := NewMemoryPublisher()
	m.SetEventPublisher(pub)
	if err := m.Select("Qwen2.5-0.5B-Instruct-q4f16_1-MLC"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if ev := pub.Events(); len(ev) != 1 || ev[0].Name != EventSelect || ev[0].ModelID != "Qwen2.5-0.5B-Instruct-q4f16_1-MLC" {
		t.Fatalf("events=%+v", ev)
	}
	m.SetEventPublisher(nil)
	if err := m.Select("Llama-3.2-1B-Instruct-q4f16_1-MLC"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(pub.Events()) != 1 {
		t.Fatalf("detached publisher still receiving")
	}
	if !m.Connected() || New(nil, "").Connected() {
		t.Fatalf("connected reporting wrong")
	}
}
