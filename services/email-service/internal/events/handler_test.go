package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeRecipients struct {
	upserts map[string]string
	removed []string
	err     error
}

func newFakeRecipients() *fakeRecipients {
	return &fakeRecipients{upserts: make(map[string]string)}
}

func (f *fakeRecipients) Upsert(_ context.Context, email, name string) error {
	if f.err != nil {
		return f.err
	}
	f.upserts[email] = name
	return nil
}

func (f *fakeRecipients) Remove(_ context.Context, email string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, email)
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleCreatedRegistersAndMails(t *testing.T) {
	recipients := newFakeRecipients()
	sender := &fakeSender{}
	h := NewHandler(recipients, sender, testLogger())

	payload := []byte(`{"eventId":"e1","id":5,"name":"Ann","email":"ann@example.com","age":30}`)
	if err := h.HandleCreated(context.Background(), payload); err != nil {
		t.Fatalf("HandleCreated: %v", err)
	}
	if recipients.upserts["ann@example.com"] != "Ann" {
		t.Fatalf("recipient not registered: %v", recipients.upserts)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "ann@example.com" {
		t.Fatalf("welcome mail not sent: %v", sender.sent)
	}
}

func TestHandleCreatedMalformedSkipped(t *testing.T) {
	recipients := newFakeRecipients()
	h := NewHandler(recipients, &fakeSender{}, testLogger())

	if err := h.HandleCreated(context.Background(), []byte(`not json`)); err != nil {
		t.Fatalf("malformed payload must be skipped, got %v", err)
	}
	if err := h.HandleCreated(context.Background(), []byte(`{"id":0,"email":""}`)); err != nil {
		t.Fatalf("payload without required fields must be skipped, got %v", err)
	}
	if len(recipients.upserts) != 0 {
		t.Fatalf("no recipient expected, got %v", recipients.upserts)
	}
}

func TestHandleCreatedStorageErrorRetried(t *testing.T) {
	recipients := newFakeRecipients()
	recipients.err = errors.New("db down")
	h := NewHandler(recipients, &fakeSender{}, testLogger())

	payload := []byte(`{"id":5,"name":"Ann","email":"ann@example.com"}`)
	if err := h.HandleCreated(context.Background(), payload); err == nil {
		t.Fatal("storage failure must surface so the message is retried")
	}
}

func TestHandleCreatedMailFailureNotFatal(t *testing.T) {
	recipients := newFakeRecipients()
	sender := &fakeSender{err: errors.New("relay down")}
	h := NewHandler(recipients, sender, testLogger())

	payload := []byte(`{"id":5,"name":"Ann","email":"ann@example.com"}`)
	if err := h.HandleCreated(context.Background(), payload); err != nil {
		t.Fatalf("mail failure must not fail the event: %v", err)
	}
	if recipients.upserts["ann@example.com"] != "Ann" {
		t.Fatal("recipient must still be registered")
	}
}

func TestHandleDeletedRemovesAndMails(t *testing.T) {
	recipients := newFakeRecipients()
	sender := &fakeSender{}
	h := NewHandler(recipients, sender, testLogger())

	payload := []byte(`{"eventId":"e2","id":5,"email":"ann@example.com"}`)
	if err := h.HandleDeleted(context.Background(), payload); err != nil {
		t.Fatalf("HandleDeleted: %v", err)
	}
	if len(recipients.removed) != 1 || recipients.removed[0] != "ann@example.com" {
		t.Fatalf("recipient not removed: %v", recipients.removed)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("farewell mail not sent: %v", sender.sent)
	}
}
