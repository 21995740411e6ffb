package forwarder

import (
	"reflect"
	"testing"
)

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		keywords []string
		want     string
		wantHit  bool
	}{
		{
			name:     "大小写不敏感命中",
			body:     "Taxi kerak, tezroq",
			keywords: []string{"buyurtma", "taxi"},
			want:     "taxi",
			wantHit:  true,
		},
		{
			name:     "快照顺序决定平局",
			body:     "taxi buyurtma qilaman",
			keywords: []string{"buyurtma", "taxi"},
			want:     "buyurtma",
			wantHit:  true,
		},
		{
			name:     "无命中",
			body:     "salom hammaga",
			keywords: []string{"buyurtma", "taxi"},
			wantHit:  false,
		},
		{
			name:     "空关键词被跳过",
			body:     "har qanday matn",
			keywords: []string{"", "matn"},
			want:     "matn",
			wantHit:  true,
		},
		{
			name:     "子串也算命中",
			body:     "beshta taxichilar bor",
			keywords: []string{"taxi"},
			want:     "taxi",
			wantHit:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := MatchKeyword(tt.body, tt.keywords)
			if hit != tt.wantHit || got != tt.want {
				t.Fatalf("MatchKeyword() = (%q, %v), want (%q, %v)", got, hit, tt.want, tt.wantHit)
			}
		})
	}
}

func TestExtractLinksDeduplicates(t *testing.T) {
	body := "Koringlar https://t.me/somegroup/15 va yana https://t.me/somegroup/15"

	display, inBody := ExtractLinks(body, []string{"https://t.me/somegroup/15"})

	if want := []string{"https://t.me/somegroup/15"}; !reflect.DeepEqual(display, want) {
		t.Fatalf("display = %v, want %v", display, want)
	}
	if len(inBody) != 2 {
		t.Fatalf("inBody should keep every occurrence for removal, got %v", inBody)
	}
}

func TestExtractLinksCapsDisplay(t *testing.T) {
	body := "https://a.example https://b.example https://c.example https://d.example"

	display, _ := ExtractLinks(body, nil)
	if len(display) != maxExtraLinks {
		t.Fatalf("display capped at %d, got %d", maxExtraLinks, len(display))
	}
}

func TestExtractLinksTrimsTrailingPunctuation(t *testing.T) {
	display, _ := ExtractLinks("bu yerda: https://example.com/page.", nil)
	if len(display) != 1 || display[0] != "https://example.com/page" {
		t.Fatalf("display = %v", display)
	}
}

func TestCleanBody(t *testing.T) {
	body := "Taxi kerak   hozir\nhttps://t.me/x/1\n\n\ntez bolsin"
	got := CleanBody(body, []string{"https://t.me/x/1"})
	want := "Taxi kerak hozir\n\ntez bolsin"
	if got != want {
		t.Fatalf("CleanBody() = %q, want %q", got, want)
	}
}

func TestCleanBodyAllURL(t *testing.T) {
	body := "https://t.me/x/1"
	if got := CleanBody(body, []string{"https://t.me/x/1"}); got != "" {
		t.Fatalf("expected empty body, got %q", got)
	}
}
