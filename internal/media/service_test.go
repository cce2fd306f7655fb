package media

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const testProfileID = "0b54f8a2-7c11-4b8e-9a33-55d1c0ffee00"

func newTestService(t *testing.T) *Service {
	t.Helper()
	storage := NewFilesystemStorage(t.TempDir(), zerolog.Nop())
	return NewServiceWithStorage(storage, zerolog.Nop())
}

func TestRefNamespacesByProfile(t *testing.T) {
	ref, err := Ref(testProfileID, "morning show.mp3")
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if ref != testProfileID+"-morning_show.mp3" {
		t.Errorf("ref = %q", ref)
	}
	if got := ProfileID(ref); got != testProfileID {
		t.Errorf("profile id = %q", got)
	}

	if _, err := Ref(testProfileID, "  "); err == nil {
		t.Error("blank filename must be rejected")
	}
	if ref, err := Ref(testProfileID, "../../etc/passwd"); err != nil || strings.Contains(ref, "/") {
		t.Errorf("path traversal must be stripped, got %q err %v", ref, err)
	}
}

func TestStoreOpenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ref, err := svc.Store(ctx, testProfileID, "jingle.mp3", strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	rc, err := svc.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestOpenMissingRef(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Open(context.Background(), testProfileID+"-nope.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteProfileAssetsLeavesOtherProfiles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	other := "9f1e2d3c-4b5a-6978-8a9b-0c1d2e3f4a5b"

	for _, seed := range []struct{ profile, name string }{
		{testProfileID, "a.mp3"},
		{testProfileID, "b.mp3"},
		{other, "c.mp3"},
	} {
		if _, err := svc.Store(ctx, seed.profile, seed.name, strings.NewReader("x")); err != nil {
			t.Fatalf("store %s: %v", seed.name, err)
		}
	}

	if err := svc.DeleteProfileAssets(ctx, testProfileID); err != nil {
		t.Fatalf("delete assets: %v", err)
	}

	gone, err := svc.List(ctx, testProfileID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("remaining refs = %v", gone)
	}

	kept, err := svc.List(ctx, other)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	sort.Strings(kept)
	if len(kept) != 1 || kept[0] != other+"-c.mp3" {
		t.Errorf("other profile's refs = %v", kept)
	}
}
