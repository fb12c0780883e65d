package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProfile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cpu.prof")
	errRun := errors.New("run failed")
	called := false
	err := profile(file, func() error {
		called = true
		return errRun
	})
	if !called {
		t.Fatal("profiled func not called")
	}
	if err != errRun {
		t.Errorf("got error %v, want %v", err, errRun)
	}
	fi, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("profile is empty")
	}

	if err := profile("", func() error { return nil }); err != nil {
		t.Errorf("got error %v without a profile", err)
	}
}
