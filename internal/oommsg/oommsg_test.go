package oommsg_test

import (
	"testing"
	"time"

	"keelos/internal/oommsg"
)

func TestOomChCarriesRequestAndResumesOnSignal(t *testing.T) {
	resume := make(chan bool)
	go func() {
		oommsg.OomCh <- oommsg.Oommsg_t{Need: 4, Resume: resume}
	}()

	select {
	case msg := <-oommsg.OomCh:
		if msg.Need != 4 {
			t.Fatalf("Need = %d, want 4", msg.Need)
		}
		close(msg.Resume)
	case <-time.After(time.Second):
		t.Fatal("no message arrived on OomCh")
	}

	select {
	case _, open := <-resume:
		if open {
			t.Fatal("resume channel yielded a value instead of being closed")
		}
	case <-time.After(time.Second):
		t.Fatal("resume channel was never closed")
	}
}
