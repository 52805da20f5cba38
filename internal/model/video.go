package model

import "time"

// Video はカタログ上の動画を表す。
// 再生は埋め込みプレイヤーのURL（VideoURL）に委譲する。
type Video struct {
	ID            string
	Title         string
	Description   string
	ThumbnailURL  string
	VideoURL      string
	Duration      string
	Views         int
	UploadDate    time.Time
	ChannelID     string
	ChannelName   string
	ChannelAvatar string
	Likes         int
	Dislikes      int
	Categories    []string
	Tags          []string
}

// Channel は動画の投稿チャンネルを表す。
type Channel struct {
	ID          string
	Name        string
	Avatar      string
	Subscribers int
	Videos      int
	Description string
	JoinDate    time.Time
}
