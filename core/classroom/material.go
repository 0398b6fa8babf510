package classroom

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaterialVendor identifies the hosting service of a material URL.
type MaterialVendor string

// Material vendors
const (
	VendorNone    MaterialVendor = ""
	VendorYouTube MaterialVendor = "youtube"
	VendorDrive   MaterialVendor = "drive"
)

var (
	drivePathRe = regexp.MustCompile(`/file/d/([^/]+)`)
	pdfExtRe    = regexp.MustCompile(`\.pdf(\?|$)`)
	imageExtRe  = regexp.MustCompile(`\.(png|jpg|jpeg|gif|webp|svg)(\?|$)`)
	videoExtRe  = regexp.MustCompile(`\.(mp4|mov|avi|mkv)(\?|$)`)
)

// NormalizeMaterialURL rewrites share links into their canonical form and infers the material type.
// youtu.be links become youtube watch links; Drive share links become file view links.
// Normalizing an already normalized URL returns it unchanged.
func NormalizeMaterialURL(raw string) (string, MaterialType) {
	link := strings.TrimSpace(raw)
	if u, err := url.Parse(link); err == nil && u.Scheme != "" && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if host == "youtu.be" && len(u.Path) > 1 {
			link = "https://www.youtube.com/watch?v=" + u.Path[1:]
		}
		if strings.Contains(host, "drive.google.com") {
			var id string
			if m := drivePathRe.FindStringSubmatch(u.Path); m != nil {
				id = m[1]
			} else {
				id = u.Query().Get("id")
			}
			if id != "" {
				link = "https://drive.google.com/file/d/" + id + "/view"
			}
		}
	}
	mType, _ := classifyMaterial(link)
	return link, mType
}

// classifyMaterial infers the type from the host first, then from the extension.
func classifyMaterial(link string) (MaterialType, MaterialVendor) {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "youtube.com/watch") || strings.Contains(lower, "youtu.be/"):
		return MaterialVideo, VendorYouTube
	case strings.Contains(lower, "drive.google.com"):
		if pdfExtRe.MatchString(lower) {
			return MaterialPDF, VendorDrive
		}
		return MaterialDocument, VendorDrive
	case pdfExtRe.MatchString(lower):
		return MaterialPDF, VendorNone
	case imageExtRe.MatchString(lower):
		return MaterialImage, VendorNone
	case videoExtRe.MatchString(lower):
		return MaterialVideo, VendorNone
	}
	return MaterialDocument, VendorNone
}

// VendorOf returns the hosting service of a material URL.
func VendorOf(link string) MaterialVendor {
	_, vendor := classifyMaterial(link)
	return vendor
}

// MaterialBadge returns the display label of a material.
func MaterialBadge(m Material) string {
	lower := strings.ToLower(m.URL)
	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return "YouTube"
	case strings.Contains(lower, "drive.google.com"):
		return "Google Drive"
	case pdfExtRe.MatchString(lower):
		return "PDF"
	case imageExtRe.MatchString(lower):
		return "Imagem"
	case m.Type != "":
		return string(m.Type)
	}
	return "Documento"
}

var sizeUnits = [...]string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a size in bytes with two decimals at most. Unknown sizes render empty.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	i := 0
	for n := bytes; n >= 1024 && i < len(sizeUnits)-1; n /= 1024 {
		i++
	}
	v := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// Build turns the input into a Material with a fresh ID, a normalized URL and an inferred type.
func (nm NewMaterial) Build() Material {
	link, mType := NormalizeMaterialURL(nm.URL)
	return Material{
		ID:   uuid.NewString(),
		Name: nm.Name,
		Type: mType,
		URL:  link,
		Size: nm.Size,
	}
}

// BuildMaterials builds the materials of a lesson from inputs.
// Inputs whose ID matches one of current keep that material, including its type; the name may change.
func BuildMaterials(inputs []NewMaterial, current []Material) []Material {
	existing := make(map[string]Material, len(current))
	for _, m := range current {
		existing[m.ID] = m
	}

	materials := make([]Material, 0, len(inputs))
	for _, in := range inputs {
		if m, ok := existing[in.ID]; ok && in.ID != "" {
			m.Name = in.Name
			if in.Size > 0 {
				m.Size = in.Size
			}
			materials = append(materials, m)
			continue
		}
		materials = append(materials, in.Build())
	}
	return materials
}
