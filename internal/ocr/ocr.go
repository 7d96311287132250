// Package ocr defines the text-recognition contract used when notes are
// uploaded as scanned page images.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Parallel bounds the pages RecognizeAll hands to the recognizer at once.
const Parallel = 4

// Recognizer extracts text from an encoded image (PNG, JPEG, ...).
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// RecognizeAsync runs r in a goroutine and reports through exactly one of
// the callbacks. Either callback may be nil.
func RecognizeAsync(ctx context.Context, r Recognizer, image []byte, onSuccess func(string), onFailure func(error)) {
	go func() {
		text, err := r.Recognize(ctx, image)
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(text)
		}
	}()
}

// Static returns the same text for every image. It backs the "none" driver
// and tests.
type Static string

// Recognize returns s.
func (s Static) Recognize(_ context.Context, _ []byte) (string, error) {
	return string(s), nil
}

// Tesseract shells out to the tesseract CLI, feeding the image on stdin.
type Tesseract struct {
	Binary   string
	Language string
}

// ErrNoText is returned when the engine produced no text at all.
var ErrNoText = errors.New("ocr: no text recognized")

// Recognize runs `tesseract stdin stdout [-l lang]`.
func (t Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{"stdin", "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ocr: tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// RecognizeAll runs r over images, at most Parallel at a time, and joins the
// results in page order with blank lines. Pages that yield ErrNoText
// contribute nothing.
func RecognizeAll(ctx context.Context, r Recognizer, images [][]byte) (string, error) {
	texts := make([]string, len(images))
	errs := make([]error, len(images))
	slots := make(chan struct{}, Parallel)
	var wg sync.WaitGroup
	for i, img := range images {
		slots <- struct{}{}
		wg.Add(1)
		RecognizeAsync(ctx, r, img,
			func(text string) {
				texts[i] = text
				<-slots
				wg.Done()
			},
			func(err error) {
				errs[i] = err
				<-slots
				wg.Done()
			})
	}
	wg.Wait()

	parts := make([]string, 0, len(images))
	for i, text := range texts {
		if errors.Is(errs[i], ErrNoText) {
			continue
		}
		if errs[i] != nil {
			return "", fmt.Errorf("ocr: page %d: %w", i+1, errs[i])
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
