package main

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestShutdownChannelTakesBothSenders(t *testing.T) {
	errChannel := newShutdownChannel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errChannel <- errors.New("interrupt")
	}()
	go func() {
		defer wg.Done()
		errChannel <- http.ErrServerClosed
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("senders blocked with nobody reading")
	}
	if len(errChannel) != 2 {
		t.Errorf("buffered errors = %d, want 2", len(errChannel))
	}
}
