// engine.go - Recognition engine lifecycle and multi-language fan-out

package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/pakorn/invoice_extract_ai/internal/common"
)

// Client is the handle for one initialized recognition engine. The
// tesseract-backed implementation is stateful and expensive to construct,
// so clients are created once per language and reused across calls.
type Client interface {
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// ClientFactory creates a recognition client for one language code.
type ClientFactory func(lang string) (Client, error)

func tesseractFactory(lang string) (Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting language %q: %w", lang, err)
	}
	return client, nil
}

// engine pairs a client with the lock that serializes access to it.
// Tesseract clients are not reentrant, so concurrent recognition for the
// same language must queue; different languages still run in parallel.
type engine struct {
	lang   string
	client Client
	mu     sync.Mutex
}

func (e *engine) recognize(image []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("lang %s: setting image: %w", e.lang, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("lang %s: recognition: %w", e.lang, err)
	}
	return text, nil
}

// Manager owns one recognition engine per supported language. Engines must
// be initialized with Init before the first Recognize call and released
// with Close; there is no lazy re-initialization.
type Manager struct {
	languages []string // priority order, primary language first
	factory   ClientFactory

	mu      sync.RWMutex
	engines map[string]*engine
	ready   bool
}

// NewManager creates a manager for the given languages (priority order,
// primary first) backed by tesseract.
func NewManager(languages []string) *Manager {
	return NewManagerWithFactory(languages, tesseractFactory)
}

// NewManagerWithFactory is NewManager with a custom client factory, used
// to inject fake engines in tests.
func NewManagerWithFactory(languages []string, factory ClientFactory) *Manager {
	return &Manager{
		languages: append([]string(nil), languages...),
		factory:   factory,
		engines:   make(map[string]*engine),
	}
}

// Languages returns the configured language codes in priority order.
func (m *Manager) Languages() []string {
	return append([]string(nil), m.languages...)
}

// Init constructs one engine per configured language. On any failure the
// engines created so far are released and the manager stays not ready.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return nil
	}

	for _, lang := range m.languages {
		client, err := m.factory(lang)
		if err != nil {
			m.closeLocked()
			return common.NewError(common.ErrUpstream,
				fmt.Sprintf("failed to initialize recognition engine for %q", lang), err)
		}
		m.engines[lang] = &engine{lang: lang, client: client}
	}
	m.ready = true
	return nil
}

// Ready reports whether Init has completed successfully.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Recognize runs one recognition pass per requested language against the
// same normalized image, concurrently, and merges the results with
// MergeTexts in the manager's priority order. A nil or empty language set
// means every configured language. A failure in one pass does not abort
// the others; only when every pass fails does Recognize report
// RecognitionFailure.
func (m *Manager) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	m.mu.RLock()
	if !m.ready {
		m.mu.RUnlock()
		return "", common.NewError(common.ErrEngineNotReady,
			"recognition engines are not initialized", nil)
	}

	ordered := m.orderedLocked(languages)
	engines := make([]*engine, 0, len(ordered))
	for _, lang := range ordered {
		eng, ok := m.engines[lang]
		if !ok {
			m.mu.RUnlock()
			return "", common.NewError(common.ErrEngineNotReady,
				fmt.Sprintf("no recognition engine for language %q", lang), nil)
		}
		engines = append(engines, eng)
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return "", common.NewError(common.ErrUpstream, "recognition canceled", err)
	}

	results := make([]string, len(engines))
	errs := make([]error, len(engines))

	var wg sync.WaitGroup
	for i, eng := range engines {
		wg.Add(1)
		go func(i int, eng *engine) {
			defer wg.Done()
			results[i], errs[i] = eng.recognize(image)
		}(i, eng)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(engines) {
		return "", common.NewError(common.ErrRecognition,
			"all recognition passes failed", errors.Join(errs...))
	}

	return MergeTexts(results), nil
}

// orderedLocked maps a requested language set onto the configured priority
// order; unknown entries are kept at the tail so Recognize can report them.
func (m *Manager) orderedLocked(requested []string) []string {
	if len(requested) == 0 {
		return m.languages
	}
	want := make(map[string]bool, len(requested))
	for _, lang := range requested {
		want[lang] = true
	}
	ordered := make([]string, 0, len(requested))
	for _, lang := range m.languages {
		if want[lang] {
			ordered = append(ordered, lang)
			delete(want, lang)
		}
	}
	for _, lang := range requested {
		if want[lang] {
			ordered = append(ordered, lang)
			delete(want, lang)
		}
	}
	return ordered
}

// Close releases every engine. It is safe to call when initialization
// failed part way, and safe to call more than once. Callers must not
// release the manager while recognition calls are in flight; the pipeline
// orchestrator drains outstanding calls first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	var errs []error
	for lang, eng := range m.engines {
		eng.mu.Lock()
		if err := eng.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine %s: %w", lang, err))
		}
		eng.mu.Unlock()
		delete(m.engines, lang)
	}
	m.ready = false
	return errors.Join(errs...)
}
