package i18n

import (
	"sync"
	"testing"
)

func TestTranslatorText(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	if got := tr.Text("zh-CN", "cli.summary.status"); got != "状态" {
		t.Fatalf("expected zh-CN translation, got %s", got)
	}
	if got := tr.Text("zh_CN", "cli.summary.status"); got != "Status" {
		t.Fatalf("unknown locale should fall back to default, got %s", got)
	}
	if got := tr.Text("de", "cli.list.url"); got != "URL" {
		t.Fatalf("expected fallback to default locale, got %s", got)
	}
	if got := tr.Text("en", "non.existent.key"); got != "non.existent.key" {
		t.Fatalf("expected key returned for non-existent translation, got %s", got)
	}
	if got := tr.Text("en", ""); got != "" {
		t.Fatalf("expected empty string for empty key, got %s", got)
	}
}

func TestTranslatorSupported(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	supported := tr.Supported()
	expected := []string{"en", "zh-CN"}
	if len(supported) != len(expected) {
		t.Fatalf("expected %d supported locales, got %d", len(expected), len(supported))
	}
	for i, loc := range supported {
		if loc != expected[i] {
			t.Fatalf("expected locale %s at position %d, got %s", expected[i], i, loc)
		}
	}
}

func TestTranslatorMissingDefault(t *testing.T) {
	if _, err := NewTranslator("xx"); err == nil {
		t.Fatal("expected error for missing default locale")
	}
}

func TestLocalizer(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	zh := tr.Bind("zh-CN")
	if got := zh.Tf("cli.error.title", 3); got != "请求 #3 失败" {
		t.Fatalf("unexpected formatted text %q", got)
	}
	if got := tr.Bind("").Locale(); got != "en" {
		t.Fatalf("empty locale should bind the default, got %s", got)
	}

	var nilLocalizer *Localizer
	if got := nilLocalizer.T("cli.list.url"); got != "cli.list.url" {
		t.Fatalf("nil localizer should echo the key, got %s", got)
	}
	if got := (&Translator{}).Bind("en").T("k"); got != "k" {
		t.Fatalf("empty translator should echo the key, got %s", got)
	}
}

func TestTranslatorConcurrentAccess(t *testing.T) {
	tr, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Text("zh-CN", "cli.list.title")
			_ = tr.Supported()
		}()
	}
	wg.Wait()
}
