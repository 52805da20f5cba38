// Package catalog は読み取り専用の動画カタログを提供する。
// 動画とチャンネルは起動時に固定データで初期化され、以降変更されない。
package catalog

import (
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// Catalog はインメモリの動画カタログ。
// 初期化後は書き込みがないため、並行して呼び出しても安全である。
// 返却値はすべてコピーであり、呼び出し側が変更してもカタログには影響しない。
type Catalog struct {
	videos   []model.Video
	channels []model.Channel
}

// New は指定の動画とチャンネルでCatalogを生成する。
func New(videos []model.Video, channels []model.Channel) *Catalog {
	c := &Catalog{
		videos:   make([]model.Video, len(videos)),
		channels: make([]model.Channel, len(channels)),
	}
	for i, v := range videos {
		c.videos[i] = cloneVideo(v)
	}
	copy(c.channels, channels)
	return c
}

// NewSeeded は組み込みのサンプルデータで初期化したCatalogを生成する。
func NewSeeded() *Catalog {
	return New(seedVideos(), seedChannels())
}

// List はカテゴリと検索語で絞り込んだ動画一覧を返す。
// categoryは大文字小文字を区別しない完全一致、searchはタイトル・説明・タグへの部分一致。
// 空文字の条件は適用しない。
func (c *Catalog) List(category, search string) []model.Video {
	category = strings.ToLower(strings.TrimSpace(category))
	search = strings.ToLower(strings.TrimSpace(search))

	result := make([]model.Video, 0, len(c.videos))
	for _, v := range c.videos {
		if category != "" && !hasCategory(v, category) {
			continue
		}
		if search != "" && !matchesSearch(v, search) {
			continue
		}
		result = append(result, cloneVideo(v))
	}
	return result
}

// Get は指定IDの動画を返す。存在しない場合はVIDEO_NOT_FOUNDエラーを返す。
func (c *Catalog) Get(videoID string) (*model.Video, error) {
	for _, v := range c.videos {
		if v.ID == videoID {
			out := cloneVideo(v)
			return &out, nil
		}
	}
	return nil, model.NewVideoNotFoundError(videoID)
}

// ChannelVideos は指定チャンネルの動画一覧を返す。
func (c *Catalog) ChannelVideos(channelID string) []model.Video {
	result := make([]model.Video, 0)
	for _, v := range c.videos {
		if v.ChannelID == channelID {
			result = append(result, cloneVideo(v))
		}
	}
	return result
}

// Channel は指定IDのチャンネルを返す。存在しない場合はCHANNEL_NOT_FOUNDエラーを返す。
func (c *Catalog) Channel(channelID string) (*model.Channel, error) {
	for _, ch := range c.channels {
		if ch.ID == channelID {
			out := ch
			return &out, nil
		}
	}
	return nil, model.NewChannelNotFoundError(channelID)
}

// Recommended は指定動画を除いた動画一覧を返す。
func (c *Catalog) Recommended(videoID string) []model.Video {
	result := make([]model.Video, 0, len(c.videos))
	for _, v := range c.videos {
		if v.ID != videoID {
			result = append(result, cloneVideo(v))
		}
	}
	return result
}

// Trending は再生回数の降順で動画一覧を返す。
// 再生回数が同じ場合は登録順を保つ。
func (c *Catalog) Trending() []model.Video {
	result := make([]model.Video, len(c.videos))
	for i, v := range c.videos {
		result[i] = cloneVideo(v)
	}
	slices.SortStableFunc(result, func(a, b model.Video) int {
		return b.Views - a.Views
	})
	return result
}

func hasCategory(v model.Video, category string) bool {
	for _, cat := range v.Categories {
		if strings.ToLower(cat) == category {
			return true
		}
	}
	return false
}

func matchesSearch(v model.Video, search string) bool {
	if strings.Contains(strings.ToLower(v.Title), search) ||
		strings.Contains(strings.ToLower(v.Description), search) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func cloneVideo(v model.Video) model.Video {
	v.Categories = slices.Clone(v.Categories)
	v.Tags = slices.Clone(v.Tags)
	return v
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
