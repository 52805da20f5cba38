package catalog

import (
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

const (
	embedURL   = "https://www.youtube.com/embed/dQw4w9WgXcQ"
	avatarBase = "https://api.dicebear.com/7.x/avataaars/svg?seed="
	thumbQuery = "?w=800&auto=format&fit=crop"
)

func thumbnail(photo string) string {
	return "https://images.unsplash.com/" + photo + thumbQuery
}

func seedVideos() []model.Video {
	return []model.Video{
		{
			ID:            "1",
			Title:         "How to Build a YouTube Clone with React",
			Description:   "Learn how to build a YouTube clone using React, TailwindCSS, and more!",
			ThumbnailURL:  thumbnail("photo-1633356122544-f134324a6cee"),
			VideoURL:      embedURL,
			Duration:      "10:25",
			Views:         158721,
			UploadDate:    date(2023, time.March, 15),
			ChannelID:     "1",
			ChannelName:   "Code Masters",
			ChannelAvatar: avatarBase + "CodeMasters",
			Likes:         15234,
			Dislikes:      234,
			Categories:    []string{"Programming", "Web Development"},
			Tags:          []string{"react", "tailwind", "typescript"},
		},
		{
			ID:            "2",
			Title:         "React State Management in 2023",
			Description:   "What's the best way to manage state in React applications in 2023?",
			ThumbnailURL:  thumbnail("photo-1633356122102-3fe601e05bd2"),
			VideoURL:      embedURL,
			Duration:      "15:42",
			Views:         89432,
			UploadDate:    date(2023, time.February, 20),
			ChannelID:     "1",
			ChannelName:   "Code Masters",
			ChannelAvatar: avatarBase + "CodeMasters",
			Likes:         9876,
			Dislikes:      123,
			Categories:    []string{"Programming", "Web Development"},
			Tags:          []string{"react", "state management", "redux"},
		},
		{
			ID:            "3",
			Title:         "Building a Responsive Website with TailwindCSS",
			Description:   "Learn how to build a responsive website using TailwindCSS",
			ThumbnailURL:  thumbnail("photo-1587620962725-abab7fe55159"),
			VideoURL:      embedURL,
			Duration:      "8:15",
			Views:         245690,
			UploadDate:    date(2023, time.January, 5),
			ChannelID:     "2",
			ChannelName:   "Web Wizards",
			ChannelAvatar: avatarBase + "WebWizards",
			Likes:         23456,
			Dislikes:      345,
			Categories:    []string{"Programming", "Web Development"},
			Tags:          []string{"tailwind", "css", "responsive"},
		},
		{
			ID:            "4",
			Title:         "JavaScript Tips and Tricks",
			Description:   "Advanced JavaScript tips and tricks to improve your coding skills",
			ThumbnailURL:  thumbnail("photo-1579468118864-1b9ea3c0db4a"),
			VideoURL:      embedURL,
			Duration:      "12:30",
			Views:         378912,
			UploadDate:    date(2022, time.December, 12),
			ChannelID:     "2",
			ChannelName:   "Web Wizards",
			ChannelAvatar: avatarBase + "WebWizards",
			Likes:         45678,
			Dislikes:      678,
			Categories:    []string{"Programming", "JavaScript"},
			Tags:          []string{"javascript", "tips", "tricks"},
		},
		{
			ID:            "5",
			Title:         "How to Deploy Your App to AWS",
			Description:   "Step-by-step guide to deploying your application to AWS",
			ThumbnailURL:  thumbnail("photo-1607743386760-88f10e06d8a1"),
			VideoURL:      embedURL,
			Duration:      "20:18",
			Views:         157845,
			UploadDate:    date(2022, time.November, 25),
			ChannelID:     "3",
			ChannelName:   "Cloud Computing",
			ChannelAvatar: avatarBase + "CloudComputing",
			Likes:         18765,
			Dislikes:      234,
			Categories:    []string{"Cloud Computing", "AWS"},
			Tags:          []string{"aws", "deployment", "cloud"},
		},
		{
			ID:            "6",
			Title:         "Introduction to Machine Learning",
			Description:   "An introduction to machine learning concepts and applications",
			ThumbnailURL:  thumbnail("photo-1620712943543-bcc4688e7485"),
			VideoURL:      embedURL,
			Duration:      "25:40",
			Views:         289456,
			UploadDate:    date(2022, time.October, 10),
			ChannelID:     "4",
			ChannelName:   "Data Science Hub",
			ChannelAvatar: avatarBase + "DataScienceHub",
			Likes:         32456,
			Dislikes:      456,
			Categories:    []string{"Data Science", "Machine Learning"},
			Tags:          []string{"machine learning", "ai", "data science"},
		},
	}
}

func seedChannels() []model.Channel {
	return []model.Channel{
		{
			ID:          "1",
			Name:        "Code Masters",
			Avatar:      avatarBase + "CodeMasters",
			Subscribers: 1450000,
			Videos:      245,
			Description: "We teach coding and programming concepts",
			JoinDate:    date(2018, time.June, 15),
		},
		{
			ID:          "2",
			Name:        "Web Wizards",
			Avatar:      avatarBase + "WebWizards",
			Subscribers: 980000,
			Videos:      189,
			Description: "Your go-to channel for web development tips",
			JoinDate:    date(2017, time.September, 20),
		},
		{
			ID:          "3",
			Name:        "Cloud Computing",
			Avatar:      avatarBase + "CloudComputing",
			Subscribers: 750000,
			Videos:      156,
			Description: "Learn all about cloud computing and deployment",
			JoinDate:    date(2019, time.March, 10),
		},
		{
			ID:          "4",
			Name:        "Data Science Hub",
			Avatar:      avatarBase + "DataScienceHub",
			Subscribers: 1200000,
			Videos:      210,
			Description: "All things data science, machine learning, and AI",
			JoinDate:    date(2017, time.February, 5),
		},
	}
}
