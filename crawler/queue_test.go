package crawler_test

import (
	"testing"
	"time"

	"github.com/corvidwing/webreach/crawler"
)

func TestJobQueueFIFO(t *testing.T) {
	q := crawler.NewJobQueue(4)

	for i := range 3 {
		if !q.Enqueue(crawler.CrawlJob{URL: "http://h/", Depth: i}) {
			t.Fatalf("Enqueue(%d) failed", i)
		}
	}

	for i := range 3 {
		job, ok := q.Dequeue(time.Second)
		if !ok {
			t.Fatalf("Dequeue(%d) timed out", i)
		}
		if job.Depth != i {
			t.Errorf("dequeued depth %d, want %d (FIFO order)", job.Depth, i)
		}
	}
}

func TestJobQueueDequeueTimeout(t *testing.T) {
	q := crawler.NewJobQueue(1)

	start := time.Now()
	_, ok := q.Dequeue(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Error("Dequeue on empty queue returned a job")
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Dequeue returned after %v, expected to wait ~50ms", elapsed)
	}
}

func TestJobQueueEnqueueAfterCloseFails(t *testing.T) {
	q := crawler.NewJobQueue(1)
	q.Close()

	if q.Enqueue(crawler.CrawlJob{URL: "http://h/"}) {
		t.Error("Enqueue succeeded on a closed queue")
	}
}

func TestJobQueueCloseUnblocksPendingEnqueue(t *testing.T) {
	q := crawler.NewJobQueue(1)
	if !q.Enqueue(crawler.CrawlJob{URL: "http://h/a"}) {
		t.Fatal("first Enqueue failed")
	}

	done := make(chan bool, 1)
	go func() {
		done <- q.Enqueue(crawler.CrawlJob{URL: "http://h/b"})
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("Enqueue against a full, then closed queue reported success")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not unblock after Close")
	}
}

func TestJobQueueBufferedJobsSurviveClose(t *testing.T) {
	q := crawler.NewJobQueue(2)
	q.Enqueue(crawler.CrawlJob{URL: "http://h/a"})
	q.Close()

	job, ok := q.Dequeue(time.Second)
	if !ok {
		t.Fatal("buffered job lost after Close")
	}
	if job.URL != "http://h/a" {
		t.Errorf("dequeued %s, want http://h/a", job.URL)
	}
}

func TestJobQueueCloseIsIdempotent(t *testing.T) {
	q := crawler.NewJobQueue(1)
	q.Close()
	q.Close()
}
