package deletion

import "testing"

func TestExecuteDestroysOnlyAfterMultiBufferCount(t *testing.T) {
	q := New(2)
	destroyed := false
	q.Enqueue(0, "buf", func() { destroyed = true })

	q.Execute(0)
	if destroyed {
		t.Fatalf("resource destroyed too early at frame 0")
	}
	q.Execute(1)
	if destroyed {
		t.Fatalf("resource destroyed too early at frame 1")
	}
	n := q.Execute(2)
	if !destroyed {
		t.Fatalf("resource should be destroyed by frame 2")
	}
	if n != 1 {
		t.Fatalf("expected 1 destroyed, got %d", n)
	}
	if q.Pending() != 0 {
		t.Fatalf("expected queue empty, got %d pending", q.Pending())
	}
}

func TestExecuteOrderPreservesFIFOForSurvivors(t *testing.T) {
	q := New(2)
	var order []int
	q.Enqueue(0, "a", func() { order = append(order, 1) })
	q.Enqueue(1, "b", func() { order = append(order, 2) })

	q.Execute(2) // only "a" qualifies (enqueued frame 0, 2-0>=2)
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("expected only entry a destroyed, got %v", order)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected entry b still pending, got %d", q.Pending())
	}

	q.Execute(3)
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("expected entry b destroyed by frame 3, got %v", order)
	}
}
