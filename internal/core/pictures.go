package core

import (
	"sort"
	"strconv"
	"strings"
)

// speculativeSizes are the artwork sizes worth probing when a provider only
// lists small thumbnails. Provider CDNs usually serve any size encoded in the
// URL path, so a URL derived from a known one is a reasonable guess.
var speculativeSizes = []int{1200, 1000, 800, 500, 300}

// ExpandPictureSizes augments the provider-listed pictures with larger
// variants derived from the first URL, then sorts them biggest first.
func ExpandPictureSizes(pictures []*Picture) []*Picture {
	if len(pictures) == 0 {
		return pictures
	}

	known := make(map[int]bool, len(pictures))
	for _, p := range pictures {
		known[p.Size()] = true
	}

	first := pictures[0]
	for _, size := range speculativeSizes {
		if known[size] {
			continue
		}
		if url := resizeURL(first.URL, first.Size(), size); url != "" {
			pictures = append(pictures, NewPicture(url, size, size))
		}
	}

	sort.SliceStable(pictures, func(i, j int) bool {
		return pictures[i].Size() > pictures[j].Size()
	})
	return pictures
}

// resizeURL rewrites the size encoded in the last path segment of url, e.g.
// ".../100x100bb.jpg" with 1200 becomes ".../1200x1200bb.jpg".
func resizeURL(url string, from, to int) string {
	slash := strings.LastIndex(url, "/")
	if slash < 0 || from <= 0 {
		return ""
	}
	base := url[slash+1:]
	if !strings.Contains(base, strconv.Itoa(from)) {
		return ""
	}
	return url[:slash+1] + strings.ReplaceAll(base, strconv.Itoa(from), strconv.Itoa(to))
}
