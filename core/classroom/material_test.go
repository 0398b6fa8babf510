package classroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMaterialURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantURL  string
		wantType MaterialType
	}{
		{"youtu.be", "https://youtu.be/abc123", "https://www.youtube.com/watch?v=abc123", MaterialVideo},
		{"youtube watch", "https://www.youtube.com/watch?v=abc123", "https://www.youtube.com/watch?v=abc123", MaterialVideo},
		{"youtu.be without id", "https://youtu.be/", "https://youtu.be/", MaterialVideo},
		{"drive path", "https://drive.google.com/file/d/XYZ/edit?usp=sharing", "https://drive.google.com/file/d/XYZ/view", MaterialDocument},
		{"drive open id", "https://drive.google.com/open?id=XYZ", "https://drive.google.com/file/d/XYZ/view", MaterialDocument},
		{"drive without id", "https://drive.google.com/drive/folders", "https://drive.google.com/drive/folders", MaterialDocument},
		{"pdf", "https://example.com/notes.PDF", "https://example.com/notes.PDF", MaterialPDF},
		{"pdf with query", "https://example.com/notes.pdf?dl=1", "https://example.com/notes.pdf?dl=1", MaterialPDF},
		{"image", "https://example.com/xray.jpeg", "https://example.com/xray.jpeg", MaterialImage},
		{"video file", "https://cdn.example.com/class.mp4", "https://cdn.example.com/class.mp4", MaterialVideo},
		{"document", "https://example.com/slides", "https://example.com/slides", MaterialDocument},
		{"not a url", "  notes.pdf ", "notes.pdf", MaterialPDF},
		{"empty", "", "", MaterialDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotURL, gotType := NormalizeMaterialURL(tc.raw)
			assert.Equal(t, tc.wantURL, gotURL)
			assert.Equal(t, tc.wantType, gotType)

			again, againType := NormalizeMaterialURL(gotURL)
			assert.Equal(t, gotURL, again, "idempotent")
			assert.Equal(t, gotType, againType)
		})
	}
}

func TestVendorOf(t *testing.T) {
	assert.Equal(t, VendorYouTube, VendorOf("https://youtu.be/abc"))
	assert.Equal(t, VendorDrive, VendorOf("https://drive.google.com/file/d/x/view"))
	assert.Equal(t, VendorNone, VendorOf("https://example.com/a.pdf"))
}

func TestMaterialBadge(t *testing.T) {
	tests := []struct {
		material Material
		want     string
	}{
		{Material{URL: "https://www.youtube.com/watch?v=1", Type: MaterialVideo}, "YouTube"},
		{Material{URL: "https://drive.google.com/file/d/1/view", Type: MaterialDocument}, "Google Drive"},
		{Material{URL: "https://example.com/a.pdf", Type: MaterialPDF}, "PDF"},
		{Material{URL: "https://example.com/a.png", Type: MaterialImage}, "Imagem"},
		{Material{URL: "https://example.com/a.mp4", Type: MaterialVideo}, "video"},
		{Material{URL: "https://example.com/a"}, "Documento"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, MaterialBadge(tc.material))
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, ""},
		{-1, ""},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072 GB"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatFileSize(tc.bytes))
		})
	}
}

func TestBuildMaterials(t *testing.T) {
	current := []Material{{ID: "m1", Name: "Old", Type: MaterialPDF, URL: "https://example.com/a.pdf"}}
	inputs := []NewMaterial{
		{ID: "m1", Name: "Renamed", URL: "https://youtu.be/zzz"},
		{Name: "Clip", URL: "https://youtu.be/abc"},
	}

	got := BuildMaterials(inputs, current)
	if assert.Len(t, got, 2) {
		assert.Equal(t, Material{ID: "m1", Name: "Renamed", Type: MaterialPDF, URL: "https://example.com/a.pdf"}, got[0], "type stays frozen")
		assert.NotEmpty(t, got[1].ID)
		assert.Equal(t, MaterialVideo, got[1].Type)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc", got[1].URL)
	}
}

func TestLessonICS(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 45, 0, time.UTC)
	lesson := Lesson{
		ID:          "l1",
		Title:       "Anatomia, parte 1",
		Description: "Ossos; crânio\nTraga\\o livro",
		Date:        time.Date(2024, 5, 2, 13, 15, 0, 0, time.FixedZone("BRT", -3*3600)),
		Duration:    90,
	}

	want := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Nort Radiologia//Aulas//PT-BR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:l1@nort-app\r\n" +
		"DTSTAMP:20240501T093000Z\r\n" +
		"DTSTART:20240502T161500Z\r\n" +
		"DTEND:20240502T174500Z\r\n" +
		"SUMMARY:Anatomia\\, parte 1\r\n" +
		"DESCRIPTION:Ossos\\; crânio\\nTraga\\\\o livro\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR"
	assert.Equal(t, want, LessonICS(lesson, now))

	t.Run("defaults", func(t *testing.T) {
		ics := LessonICS(Lesson{ID: "l2", Date: now}, now)
		assert.Contains(t, ics, "SUMMARY:Aula\r\n")
		assert.Contains(t, ics, "DTEND:20240501T103000Z\r\n")
		assert.Equal(t, "aula.ics", ICSFilename(Lesson{}))
	})
}
