package sanitize

import "testing"

func TestToSafeFilename_Basics(t *testing.T) {
	got := ToSafeFilename("Hello:/\\*?\"<>| World", "mp4")
	if got != "Hello_ World.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestToSafeFilename_Defaults(t *testing.T) {
	got := ToSafeFilename("", "")
	if got != "video.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestToSafeFilename_Long(t *testing.T) {
	title := "a"
	for len(title) < 200 {
		title += "a"
	}
	got := ToSafeFilename(title, "mp4")
	if len(got) > 125 { // name(120)+.ext
		t.Fatalf("too long: %d", len(got))
	}
}

func TestFilenameFromURL(t *testing.T) {
	cases := []struct {
		url, ext, want string
	}{
		{"https://cdn.example/files/Episode_01.mp4?token=abc", "mp4", "Episode_01.mp4"},
		{"https://cdn.example/files/stream", "webm", "stream.webm"},
		{"https://cdn.example/", "mp4", "video.mp4"},
		{"https://cdn.example/a/b/Clip.MKV#t=10", "mp4", "Clip.mkv"},
	}
	for _, c := range cases {
		if got := FilenameFromURL(c.url, c.ext); got != c.want {
			t.Errorf("FilenameFromURL(%q, %q) = %q, want %q", c.url, c.ext, got, c.want)
		}
	}
}

func TestIsValidExportName(t *testing.T) {
	cases := map[string]bool{
		"links.txt":        true,
		"season-1_eps.txt": true,
		"out.list":         true,
		"../links.txt":     false,
		"dir/links.txt":    false,
		`dir\links.txt`:    false,
		"links":            false,
		"bad name.txt":     false,
		"":                 false,
	}
	for in, want := range cases {
		if got := IsValidExportName(in); got != want {
			t.Errorf("IsValidExportName(%q) = %v, want %v", in, got, want)
		}
	}
}
