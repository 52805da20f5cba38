package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
)

// CatalogService は動画ハンドラーが必要とするカタログのインターフェース。
type CatalogService interface {
	List(category, search string) []model.Video
	Get(videoID string) (*model.Video, error)
	ChannelVideos(channelID string) []model.Video
	Channel(channelID string) (*model.Channel, error)
	Recommended(videoID string) []model.Video
	Trending() []model.Video
}

type videoResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	VideoURL      string    `json:"video_url"`
	Duration      string    `json:"duration"`
	Views         int       `json:"views"`
	UploadDate    time.Time `json:"upload_date"`
	ChannelID     string    `json:"channel_id"`
	ChannelName   string    `json:"channel_name"`
	ChannelAvatar string    `json:"channel_avatar"`
	Likes         int       `json:"likes"`
	Dislikes      int       `json:"dislikes"`
	Categories    []string  `json:"categories"`
	Tags          []string  `json:"tags"`
}

type channelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Subscribers int       `json:"subscribers"`
	Videos      int       `json:"videos"`
	Description string    `json:"description"`
	JoinDate    time.Time `json:"join_date"`
}

func toVideoResponse(v model.Video) videoResponse {
	return videoResponse{
		ID:            v.ID,
		Title:         v.Title,
		Description:   v.Description,
		ThumbnailURL:  v.ThumbnailURL,
		VideoURL:      v.VideoURL,
		Duration:      v.Duration,
		Views:         v.Views,
		UploadDate:    v.UploadDate,
		ChannelID:     v.ChannelID,
		ChannelName:   v.ChannelName,
		ChannelAvatar: v.ChannelAvatar,
		Likes:         v.Likes,
		Dislikes:      v.Dislikes,
		Categories:    v.Categories,
		Tags:          v.Tags,
	}
}

func toVideoListResponse(videos []model.Video) []videoResponse {
	out := make([]videoResponse, len(videos))
	for i, v := range videos {
		out[i] = toVideoResponse(v)
	}
	return out
}

// VideoHandler は動画カタログのHTTPハンドラー。閲覧に認証は不要。
type VideoHandler struct {
	catalog CatalogService
}

// NewVideoHandler はVideoHandlerを生成する。
func NewVideoHandler(catalog CatalogService) *VideoHandler {
	return &VideoHandler{catalog: catalog}
}

// ListVideos はカテゴリと検索語で絞り込んだ動画一覧を返す。
// GET /api/videos?category=xxx&q=yyy
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	videos := h.catalog.List(q.Get("category"), q.Get("q"))
	writeJSON(w, http.StatusOK, toVideoListResponse(videos))
}

// Trending は再生回数順の動画一覧を返す。
// GET /api/videos/trending
func (h *VideoHandler) Trending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toVideoListResponse(h.catalog.Trending()))
}

// GetVideo は動画の詳細を返す。
// GET /api/videos/{id}
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(*video))
}

// Recommended は指定動画の視聴画面に表示するおすすめ一覧を返す。
// GET /api/videos/{id}/recommended
func (h *VideoHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if _, err := h.catalog.Get(videoID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoListResponse(h.catalog.Recommended(videoID)))
}

// GetChannel はチャンネル情報を返す。
// GET /api/channels/{id}
func (h *VideoHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.catalog.Channel(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		Avatar:      ch.Avatar,
		Subscribers: ch.Subscribers,
		Videos:      ch.Videos,
		Description: ch.Description,
		JoinDate:    ch.JoinDate,
	})
}

// ChannelVideos はチャンネルの動画一覧を返す。
// GET /api/channels/{id}/videos
func (h *VideoHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	if _, err := h.catalog.Channel(channelID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoListResponse(h.catalog.ChannelVideos(channelID)))
}
