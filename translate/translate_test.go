package translate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/potranslate/pofile"
	"github.com/minios-linux/potranslate/provider"
	"github.com/minios-linux/potranslate/sanitize"
)

// stubClient records calls and answers through fn.
type stubClient struct {
	mu    sync.Mutex
	calls [][]string
	langs [2]string
	fn    func(call int, ctx context.Context, texts []string) (provider.Result, error)
}

func (s *stubClient) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) (provider.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), texts...))
	s.langs = [2]string{sourceLang, targetLang}
	n := len(s.calls)
	s.mu.Unlock()
	return s.fn(n, ctx, texts)
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func marker(prefix string) *stubClient {
	return &stubClient{fn: func(_ int, _ context.Context, texts []string) (provider.Result, error) {
		out := make([]string, len(texts))
		for i, s := range texts {
			out[i] = prefix + s
		}
		return provider.Result{Texts: out}, nil
	}}
}

func failing(err error) *stubClient {
	return &stubClient{fn: func(int, context.Context, []string) (provider.Result, error) {
		return provider.Result{}, err
	}}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parse(t *testing.T, text string) *pofile.File {
	t.Helper()
	f, err := pofile.ParseBytes([]byte(text))
	require.NoError(t, err)
	return f
}

func untranslated(n int) string {
	var b strings.Builder
	b.WriteString("msgid \"\"\nmsgstr \"\"\n\"Language: en\\n\"\n")
	for i := 0; i < n; i++ {
		b.WriteString("\nmsgid \"item " + string(rune('A'+i)) + "\"\nmsgstr \"\"\n")
	}
	return b.String()
}

var timeoutErr = &provider.Error{Kind: provider.KindTimeout, Provider: "stub"}

func TestEndToEndMarkerStub(t *testing.T) {
	in := writeTemp(t, "app.po", `msgid ""
msgstr ""
"Project-Id-Version: app 1.0\n"
"Language: en\n"

msgid "Open"
msgstr ""

msgid "Save"
msgstr ""

msgid "Quit"
msgstr ""
`)
	out := filepath.Join(filepath.Dir(in), "app.zh_CN.po")

	client := marker("[ZH] ")
	stats, err := New(client, Options{SourceLang: "en", TargetLang: "zh_CN"}).TranslateFile(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0, stats.Translated)
	assert.Equal(t, 0, stats.Fuzzy)
	assert.Equal(t, 3, stats.Untranslated)
	assert.Equal(t, 0, stats.Errors)
	assert.False(t, stats.Stopped)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, [2]string{"English", "Chinese (Simplified)"}, client.langs)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	f := parse(t, string(data))
	assert.Equal(t, "zh_CN", f.HeaderField("Language"))
	for _, e := range f.Entries {
		assert.Equal(t, "[ZH] "+e.MsgID, e.MsgStr)
	}
}

func TestTranslatedCatalogPassesThrough(t *testing.T) {
	input := "# header comment\nmsgid \"\"\nmsgstr \"\"\n\"Language: en\\n\"\n\n#: main.go:3\nmsgid   \"Hello\"\nmsgstr  \"Hola\"\n\n#, fuzzy\nmsgid \"Bye\"\nmsgstr \"\"\n"
	in := writeTemp(t, "es.po", input)
	out := filepath.Join(filepath.Dir(in), "out.po")

	client := marker("x")
	stats, err := New(client, Options{TargetLang: "es"}).TranslateFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, client.callCount())
	assert.Equal(t, 1, stats.Translated)
	assert.Equal(t, 1, stats.Fuzzy)
	assert.Zero(t, stats.Batches)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(input, "Language: en", "Language: es", 1), string(data))
}

func TestSelectClassifies(t *testing.T) {
	f := parse(t, `msgid "done"
msgstr "fait"

#, fuzzy
msgid "maybe"
msgstr "peut-etre"

#, fuzzy
msgid "unsure"
msgstr ""

msgid "   "
msgstr ""

msgid "todo"
msgstr ""

#~ msgid "old"
#~ msgstr "vieux"

msgid "%d file"
msgid_plural "%d files"
msgstr[0] ""
msgstr[1] ""
`)
	var stats Stats
	items := Select(f, &stats)

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 2, stats.Translated) // "done" and the fuzzy entry with a translation
	assert.Equal(t, 1, stats.Fuzzy)
	assert.Equal(t, 3, stats.Untranslated)
	assert.LessOrEqual(t, stats.Translated+stats.Fuzzy+stats.Untranslated, stats.Total)
	assert.Equal(t, []Item{{4, "todo"}, {5, "old"}, {6, "%d file"}}, items)
}

func TestPartition(t *testing.T) {
	for n := 0; n <= 25; n++ {
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{Index: i}
		}
		for _, size := range []int{1, 3, 10, 20} {
			batches := Partition(items, size)
			require.Len(t, batches, (n+size-1)/size, "n=%d size=%d", n, size)

			seen := 0
			for i, b := range batches {
				assert.Equal(t, i+1, b.Number)
				assert.Equal(t, seen, b.Start)
				if i < len(batches)-1 {
					assert.Len(t, b.Items, size)
				} else {
					assert.LessOrEqual(t, len(b.Items), size)
				}
				seen += len(b.Items)
			}
			assert.Equal(t, n, seen)
		}
	}
	assert.Len(t, Partition(make([]Item, 11), 0), 2)
}

func TestSkippedBatchKeepsSourceText(t *testing.T) {
	f := parse(t, untranslated(3))
	client := failing(timeoutErr)

	var statuses []string
	tr := New(client, Options{
		TargetLang: "de",
		OnProgress: func(_, _ int, status string) { statuses = append(statuses, status) },
	})
	stats, err := tr.TranslateCatalog(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxAttempts, client.callCount())
	assert.Equal(t, 3, stats.Errors)
	assert.Equal(t, 1, stats.SkippedBatches)
	for _, e := range f.Entries {
		assert.Equal(t, e.MsgID, e.MsgStr)
	}
	assert.Equal(t, []string{
		"Starting batch translation...",
		"Translating batch 1/1 (3 items)...",
		"Retrying batch 1 (attempt 2/3)...",
		"Retrying batch 1 (attempt 3/3)...",
		"Completed batch 1/1",
	}, statuses)
}

func TestDeciderChoices(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		f := parse(t, untranslated(2))
		client := failing(timeoutErr)
		var causes []string
		decider := DeciderFunc(func(cause string, batch, total int) Decision {
			causes = append(causes, cause)
			assert.Equal(t, 1, batch)
			assert.Equal(t, 1, total)
			return DecisionSkip
		})
		stats, err := New(client, Options{TargetLang: "de", Decider: decider}).TranslateCatalog(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, 1, client.callCount())
		assert.Equal(t, []string{"API request timed out (possible sleep/hibernation)"}, causes)
		assert.Equal(t, 2, stats.Errors)
		assert.Equal(t, "item A", f.Entries[0].MsgStr)
	})

	t.Run("retry then succeed", func(t *testing.T) {
		f := parse(t, untranslated(2))
		client := &stubClient{fn: func(call int, _ context.Context, texts []string) (provider.Result, error) {
			if call == 1 {
				return provider.Result{}, timeoutErr
			}
			return provider.Result{Texts: []string{"A", "B"}}, nil
		}}
		decider := DeciderFunc(func(string, int, int) Decision { return DecisionRetry })
		stats, err := New(client, Options{TargetLang: "de", Decider: decider}).TranslateCatalog(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, 2, client.callCount())
		assert.Zero(t, stats.Errors)
		assert.Equal(t, "A", f.Entries[0].MsgStr)
	})

	t.Run("stop", func(t *testing.T) {
		f := parse(t, untranslated(3))
		client := failing(timeoutErr)
		decider := DeciderFunc(func(string, int, int) Decision { return DecisionStop })
		tr := New(client, Options{TargetLang: "de", BatchSize: 1, Decider: decider})
		stats, err := tr.TranslateCatalog(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, 1, client.callCount())
		assert.True(t, stats.Stopped)
		assert.True(t, tr.Stopped())
		assert.Equal(t, 3, stats.Unresolved)
		assert.Zero(t, stats.Errors)
		for _, e := range f.Entries {
			assert.Empty(t, e.MsgStr)
		}
		assert.Equal(t, "de", f.HeaderField("Language"))
	})
}

func TestStopAfterFirstBatch(t *testing.T) {
	f := parse(t, untranslated(3))
	client := marker("T:")

	var tr *Translator
	var last string
	tr = New(client, Options{
		TargetLang: "fr",
		BatchSize:  1,
		OnProgress: func(_, _ int, status string) {
			last = status
			if status == "Completed batch 1/3" {
				tr.Stop()
			}
		},
	})
	stats, err := tr.TranslateCatalog(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount())
	assert.True(t, stats.Stopped)
	assert.Equal(t, 2, stats.Unresolved)
	assert.Equal(t, "Translation stopped by user", last)
	assert.Equal(t, "T:item A", f.Entries[0].MsgStr)
	assert.Empty(t, f.Entries[1].MsgStr)
	assert.Empty(t, f.Entries[2].MsgStr)
}

func TestMultilineSourceIsReported(t *testing.T) {
	f := parse(t, "msgid \"one\"\nmsgstr \"\"\n\nmsgid \"\"\n\"two\\n\"\n\"lines\"\nmsgstr \"\"\n\nmsgid \"three\"\nmsgstr \"\"\n")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	_, err := New(marker("T:"), Options{TargetLang: "de", BatchSize: 2, Logger: logger}).TranslateCatalog(context.Background(), f)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "multi-line sources")
	assert.Contains(t, out, "batch=1 multiline=1 items=2")
	assert.NotContains(t, out, "batch=2 multiline")
	assert.Equal(t, "T:two\nlines", f.Entries[1].MsgStr)
}

func TestStopBeforeRunIsKept(t *testing.T) {
	in := writeTemp(t, "in.po", untranslated(3))
	out := filepath.Join(t.TempDir(), "out.po")
	client := marker("T:")

	var statuses []string
	tr := New(client, Options{
		TargetLang: "fr",
		BatchSize:  1,
		OnProgress: func(_, _ int, status string) { statuses = append(statuses, status) },
	})
	tr.Stop()

	stats, err := tr.TranslateFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, client.callCount())
	assert.True(t, stats.Stopped)
	assert.Equal(t, 3, stats.Unresolved)
	assert.Equal(t, []string{"Starting batch translation...", "Translation stopped by user"}, statuses)

	f, _, err := LoadCatalog(out)
	require.NoError(t, err)
	assert.Equal(t, "fr", f.HeaderField("Language"))
	for _, e := range f.Entries {
		assert.Empty(t, e.MsgStr)
	}
}

func TestContextCancelDoesNotAbortCallInFlight(t *testing.T) {
	f := parse(t, untranslated(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &stubClient{fn: func(_ int, callCtx context.Context, texts []string) (provider.Result, error) {
		cancel()
		if callCtx.Err() != nil {
			return provider.Result{}, callCtx.Err()
		}
		return provider.Result{Texts: []string{"ok"}}, nil
	}}
	stats, err := New(client, Options{TargetLang: "it", BatchSize: 1}).TranslateCatalog(ctx, f)
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, "ok", f.Entries[0].MsgStr)
	assert.Empty(t, f.Entries[1].MsgStr)
	assert.True(t, stats.Stopped)
	assert.Equal(t, 1, stats.Unresolved)
}

func TestPanicIsHandledAsFailure(t *testing.T) {
	f := parse(t, untranslated(1))
	client := &stubClient{fn: func(call int, _ context.Context, texts []string) (provider.Result, error) {
		if call == 1 {
			panic("boom")
		}
		return provider.Result{Texts: []string{"fine"}}, nil
	}}
	var cause string
	decider := DeciderFunc(func(c string, _, _ int) Decision {
		cause = c
		return DecisionRetry
	})
	stats, err := New(client, Options{TargetLang: "pl", Decider: decider}).TranslateCatalog(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "Unexpected error: boom", cause)
	assert.Equal(t, "fine", f.Entries[0].MsgStr)
	assert.Zero(t, stats.Errors)
}

func TestWrongAnswerCountIsAFailure(t *testing.T) {
	f := parse(t, untranslated(2))
	client := &stubClient{fn: func(int, context.Context, []string) (provider.Result, error) {
		return provider.Result{Texts: []string{"only one"}}, nil
	}}
	stats, err := New(client, Options{TargetLang: "pl", MaxAttempts: 1}).TranslateCatalog(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, 2, stats.Errors)
}

func TestFallbackLinesAreCounted(t *testing.T) {
	f := parse(t, untranslated(3))
	client := &stubClient{fn: func(_ int, _ context.Context, texts []string) (provider.Result, error) {
		return provider.Result{Texts: []string{"A", texts[1], texts[2]}, Fallback: []int{1, 2}}, nil
	}}
	stats, err := New(client, Options{TargetLang: "ja"}).TranslateCatalog(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fallback)
	assert.Zero(t, stats.Errors)
	assert.Equal(t, "item B", f.Entries[1].MsgStr)
}

func TestQuotesSurviveTheRoundTrip(t *testing.T) {
	in := writeTemp(t, "q.po", "msgid \"She said \\\"hello\\\"\"\nmsgstr \"\"\n\nmsgid \"C:\\\\temp\"\nmsgstr \"\"\n")
	out := filepath.Join(filepath.Dir(in), "q.zh.po")

	client := &stubClient{fn: func(int, context.Context, []string) (provider.Result, error) {
		return provider.Result{Texts: []string{`她说"你好"`, `C:\临时`}}, nil
	}}
	_, err := New(client, Options{TargetLang: "zh"}).TranslateFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, []string{`She said "hello"`, `C:\temp`}, client.calls[0])

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msgstr "她说\"你好\""`)
	assert.Contains(t, string(data), `msgstr "C:\\临时"`)

	f := parse(t, string(data))
	assert.Equal(t, 2, strings.Count(f.Entries[0].MsgStr, `"`))
}

func TestTranslateFileRepairsInput(t *testing.T) {
	in := writeTemp(t, "broken.po", "msgctxt \"Colloquial alternative to \"learn about X\"\"\nmsgid \"learn about X\"\nmsgstr \"\"\n")
	out := filepath.Join(filepath.Dir(in), "fixed.po")

	stats, err := New(marker("~"), Options{TargetLang: "de"}).TranslateFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repaired)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	f := parse(t, string(data))
	assert.Equal(t, `Colloquial alternative to "learn about X"`, f.Entries[0].MsgCtxt)
	assert.Equal(t, "~learn about X", f.Entries[0].MsgStr)
}

func TestTranslateFileFatalErrors(t *testing.T) {
	t.Run("irrecoverable", func(t *testing.T) {
		in := writeTemp(t, "bad.po", "msgid \"unterminated\nmsgstr \"\"\n")
		_, err := New(marker(""), Options{TargetLang: "de"}).TranslateFile(context.Background(), in, in+".out")
		require.Error(t, err)
		assert.True(t, errors.Is(err, sanitize.ErrIrrecoverable))
	})

	t.Run("syntax", func(t *testing.T) {
		in := writeTemp(t, "bad.po", "what is this\n")
		_, err := New(marker(""), Options{TargetLang: "de"}).TranslateFile(context.Background(), in, in+".out")
		assert.True(t, errors.Is(err, pofile.ErrSyntax))
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := New(marker(""), Options{TargetLang: "de"}).TranslateFile(context.Background(), "/nonexistent/in.po", "/tmp/out.po")
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("unwritable output", func(t *testing.T) {
		in := writeTemp(t, "ok.po", untranslated(1))
		_, err := New(marker(""), Options{TargetLang: "de"}).TranslateFile(context.Background(), in, filepath.Join(t.TempDir(), "missing", "out.po"))
		assert.ErrorContains(t, err, "writing")
	})

	t.Run("no target language", func(t *testing.T) {
		_, err := New(marker(""), Options{}).TranslateCatalog(context.Background(), parse(t, untranslated(1)))
		assert.Error(t, err)
	})
}

func TestPluralEntriesGetEveryForm(t *testing.T) {
	f := parse(t, "msgid \"\"\nmsgstr \"\"\n\"Plural-Forms: nplurals=3; plural=0;\\n\"\n\nmsgid \"%d file\"\nmsgid_plural \"%d files\"\nmsgstr[0] \"\"\nmsgstr[1] \"\"\n")
	_, err := New(marker("R:"), Options{TargetLang: "ru"}).TranslateCatalog(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "R:%d file", 1: "R:%d file", 2: "R:%d file"}, f.Entries[0].MsgStrPlural)
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{"r": DecisionRetry, "Retry": DecisionRetry, "s": DecisionSkip, "skip": DecisionSkip, "t": DecisionStop, " STOP ": DecisionStop} {
		got, ok := ParseDecision(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDecision("maybe")
	assert.False(t, ok)
	assert.Equal(t, "skipped", StateSkipped.String())
	assert.Equal(t, "stop", DecisionStop.String())
}
