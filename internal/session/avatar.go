package session

import "net/url"

// SeedAvatarURL はユーザー名から決定的なプレースホルダーアバターのURLを返す。
func SeedAvatarURL(baseURL, username string) string {
	return baseURL + url.QueryEscape(username)
}
