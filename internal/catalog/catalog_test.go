package catalog

import (
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

func ids(videos []model.Video) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return out
}

func equalIDs(t *testing.T, got []model.Video, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func TestList_NoFilter_ReturnsAll(t *testing.T) {
	c := NewSeeded()
	equalIDs(t, c.List("", ""), "1", "2", "3", "4", "5", "6")
}

func TestList_Category(t *testing.T) {
	c := NewSeeded()

	tests := []struct {
		name     string
		category string
		want     []string
	}{
		{"完全一致", "JavaScript", []string{"4"}},
		{"大文字小文字を区別しない", "web development", []string{"1", "2", "3"}},
		{"部分一致はしない", "Web", nil},
		{"存在しないカテゴリ", "Cooking", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalIDs(t, c.List(tt.category, ""), tt.want...)
		})
	}
}

func TestList_Search(t *testing.T) {
	c := NewSeeded()

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"タイトル", "youtube clone", []string{"1"}},
		{"説明文", "step-by-step", []string{"5"}},
		{"タグ", "redux", []string{"2"}},
		{"複数フィールドに一致", "tailwind", []string{"1", "3"}},
		{"一致なし", "golang", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalIDs(t, c.List("", tt.search), tt.want...)
		})
	}
}

func TestList_CategoryAndSearch(t *testing.T) {
	c := NewSeeded()
	// Programmingカテゴリかつ"react"を含む動画
	equalIDs(t, c.List("programming", "REACT"), "1", "2")
}

func TestGet(t *testing.T) {
	c := NewSeeded()

	v, err := c.Get("3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Title != "Building a Responsive Website with TailwindCSS" {
		t.Errorf("Title = %q", v.Title)
	}
	if !v.UploadDate.Equal(time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UploadDate = %v", v.UploadDate)
	}

	_, err = c.Get("999")
	if !model.HasCode(err, model.ErrCodeVideoNotFound) {
		t.Errorf("err = %v, want VIDEO_NOT_FOUND", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	c := NewSeeded()

	v, _ := c.Get("1")
	v.Title = "changed"
	v.Tags[0] = "changed"

	again, _ := c.Get("1")
	if again.Title == "changed" || again.Tags[0] == "changed" {
		t.Error("呼び出し側の変更がカタログに反映されてはならない")
	}
}

func TestChannelVideos(t *testing.T) {
	c := NewSeeded()
	equalIDs(t, c.ChannelVideos("2"), "3", "4")

	if got := c.ChannelVideos("999"); got == nil || len(got) != 0 {
		t.Errorf("ChannelVideos(unknown) = %v, want empty slice", got)
	}
}

func TestChannel(t *testing.T) {
	c := NewSeeded()

	ch, err := c.Channel("1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Name != "Code Masters" || ch.Subscribers != 1450000 {
		t.Errorf("channel = %+v", ch)
	}
	if !ch.JoinDate.Equal(time.Date(2018, time.June, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("JoinDate = %v", ch.JoinDate)
	}

	_, err = c.Channel("999")
	if !model.HasCode(err, model.ErrCodeChannelNotFound) {
		t.Errorf("err = %v, want CHANNEL_NOT_FOUND", err)
	}
}

func TestRecommended_ExcludesCurrent(t *testing.T) {
	c := NewSeeded()
	equalIDs(t, c.Recommended("2"), "1", "3", "4", "5", "6")
	equalIDs(t, c.Recommended("999"), "1", "2", "3", "4", "5", "6")
}

func TestTrending_SortedByViews(t *testing.T) {
	c := NewSeeded()
	equalIDs(t, c.Trending(), "4", "6", "3", "1", "5", "2")
}

func TestTrending_StableForEqualViews(t *testing.T) {
	c := New([]model.Video{
		{ID: "a", Views: 10},
		{ID: "b", Views: 20},
		{ID: "c", Views: 10},
	}, nil)
	equalIDs(t, c.Trending(), "b", "a", "c")
}

func TestCatalog_ConcurrentReads(t *testing.T) {
	c := NewSeeded()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.List("programming", "react")
				_ = c.Trending()
				_, _ = c.Get("1")
			}
		}()
	}
	wg.Wait()
}
