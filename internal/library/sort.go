package library

import (
	"fmt"
	"sort"
	"strings"
)

type SortBy string

const (
	SortByName             SortBy = "name"
	SortByModificationTime SortBy = "modification_time"
	SortBySize             SortBy = "size"
)

type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

func ParseSortBy(value string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortByName:
		return SortByName, nil
	case SortByModificationTime, "mtime":
		return SortByModificationTime, nil
	case SortBySize:
		return SortBySize, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", value)
	}
}

func ParseSortDirection(value string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", value)
	}
}

// SortVideos orders videos in place. Ties are broken by path.
func SortVideos(videos []Video, by SortBy, direction SortDirection) {
	compare := func(a, b Video) int {
		switch by {
		case SortByModificationTime:
			return a.ModTime.Compare(b.ModTime)
		case SortBySize:
			switch {
			case a.Size < b.Size:
				return -1
			case a.Size > b.Size:
				return 1
			}
			return 0
		default:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}

	sort.SliceStable(videos, func(i, j int) bool {
		cmp := compare(videos[i], videos[j])
		if cmp == 0 {
			return videos[i].Path < videos[j].Path
		}
		if direction == SortDescending {
			return cmp > 0
		}
		return cmp < 0
	})
}
