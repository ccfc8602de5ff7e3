package receipt

import (
	"errors"
	"sync"
	"testing"
)

func TestFontCacheFallsBackToBuiltin(t *testing.T) {
	c := NewFontCache([]string{"/nonexistent"}, nil)
	var tried []string
	c.readFile = func(p string) ([]byte, error) {
		tried = append(tried, p)
		return nil, errors.New("missing")
	}
	face, err := c.Face(FontSpec{Name: "NoSuchFont.ttf", Size: 20})
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	defer face.Close()
	if len(tried) < 2 || tried[0] != "NoSuchFont.ttf" || tried[1] != "/nonexistent/NoSuchFont.ttf" {
		t.Fatalf("candidates tried in wrong order: %v", tried)
	}
	if face.Metrics().Ascent <= 0 {
		t.Fatalf("fallback face has no metrics")
	}
}

func TestFontCacheRejectsBadSize(t *testing.T) {
	if _, err := NewFontCache(nil, nil).Face(FontSpec{Name: "builtin:regular"}); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestFontCacheConcurrentFaces(t *testing.T) {
	c := NewFontCache(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			face, err := c.Face(FontSpec{Name: "builtin:mono", Size: 18})
			if err != nil {
				t.Errorf("Face: %v", err)
				return
			}
			_ = Measure("concurrent", face)
			_ = face.Close()
		}()
	}
	wg.Wait()
}
