package devices

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Online id sources. Mbed ids come from the HTM redirect; J-Link ids from the
// probe vendor's Board.html.
const (
	OnlineIDSourceMbed  = "mbed"
	OnlineIDSourceJlink = "jlink"
)

// OnlineID identifies a board on the online compiler.
type OnlineID struct {
	TargetType string
	Slug       string
	Source     string
}

// DeviceFileInfo is what the interface firmware files on a drive say about
// the board.
type DeviceFileInfo struct {
	ProductCode string
	OnlineID    *OnlineID
	Interface   Interface
}

var (
	htmProductCodePattern = regexp.MustCompile(`(?i)\?(?:code|auth)=([0-9a-f]{4})`)
	htmOnlineIDPattern    = regexp.MustCompile(`/(platforms|modules)/([\w.\-]+)`)
	metaRefreshPattern    = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']?refresh["']?[^>]*content=["'][^"']*url=([^"'>\s]+)`)
)

const (
	detailsFileName     = "details.txt"
	jlinkMarkerFileName = "segger.html"
	jlinkBoardFileName  = "board.html"
)

// ReadDeviceFiles scans the root of each mount point for interface firmware
// files. Files that cannot be read are logged and skipped. The first mount
// point that yields a value wins for that value.
func ReadDeviceFiles(mountPoints []string, log zerolog.Logger) DeviceFileInfo {
	var info DeviceFileInfo

	for _, mount := range mountPoints {
		files, err := listFiles(mount)
		if err != nil {
			log.Warn().Err(err).Str("mount_point", mount).Msg("Unable to list device files")
			continue
		}

		if files[jlinkMarkerFileName] != "" {
			if info.OnlineID == nil {
				info.OnlineID = readJlinkBoardFile(files[jlinkBoardFileName], log)
			}
			info.Interface = mergeInterface(info.Interface, Interface{Details: map[string]string{"Interface": "J-Link"}})
		}

		for _, path := range htmFiles(files) {
			content, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Unable to read HTM file")
				continue
			}

			code, onlineID := ParseHTM(string(content))
			if info.ProductCode == "" {
				info.ProductCode = code
			}
			if info.OnlineID == nil {
				info.OnlineID = onlineID
			}
		}

		if path := files[detailsFileName]; path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Unable to read details file")
			} else {
				info.Interface = mergeInterface(info.Interface, ParseDetailsTxt(string(content)))
			}
		}
	}

	return info
}

// listFiles maps lower-cased file names in dir to their paths.
func listFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files[strings.ToLower(e.Name())] = filepath.Join(dir, e.Name())
	}

	return files, nil
}

// htmFiles returns MBED.HTM first, then any other .htm file in name order.
func htmFiles(files map[string]string) []string {
	var paths []string
	if p, ok := files["mbed.htm"]; ok {
		paths = append(paths, p)
	}

	var others []string
	for name, p := range files {
		if name != "mbed.htm" && strings.HasSuffix(name, ".htm") {
			others = append(others, p)
		}
	}

	sort.Strings(others)

	return append(paths, others...)
}

// ParseHTM extracts the product code and online id from an interface
// firmware redirect page.
func ParseHTM(content string) (string, *OnlineID) {
	code := ""
	if m := htmProductCodePattern.FindStringSubmatch(content); m != nil {
		code = strings.ToUpper(m[1])
	}

	var onlineID *OnlineID
	if m := htmOnlineIDPattern.FindStringSubmatch(content); m != nil {
		onlineID = &OnlineID{
			TargetType: strings.TrimSuffix(m[1], "s"),
			Slug:       m[2],
			Source:     OnlineIDSourceMbed,
		}
	}

	return code, onlineID
}

// ParseDetailsTxt reads "Key: Value" lines. Comment lines starting with '#'
// and lines without a colon are skipped.
func ParseDetailsTxt(content string) Interface {
	details := map[string]string{}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		details[key] = strings.TrimSpace(value)
	}

	iface := Interface{Details: details}
	for _, key := range []string{"Interface Version", "Version"} {
		if v := details[key]; v != "" {
			iface.Version = v
			break
		}
	}

	if len(details) == 0 {
		iface.Details = nil
	}

	return iface
}

func readJlinkBoardFile(path string, log zerolog.Logger) *OnlineID {
	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Unable to read J-Link board file")
		return nil
	}

	return ParseJlinkBoardHTML(content)
}

// ParseJlinkBoardHTML takes the board slug from the last path segment of the
// meta refresh URL in a J-Link Board.html.
func ParseJlinkBoardHTML(content []byte) *OnlineID {
	m := metaRefreshPattern.FindSubmatch(content)
	if m == nil {
		return nil
	}

	url := string(bytes.TrimRight(m[1], "/"))
	slug := url[strings.LastIndex(url, "/")+1:]
	if slug == "" {
		return nil
	}

	return &OnlineID{Slug: slug, Source: OnlineIDSourceJlink}
}

func mergeInterface(into, from Interface) Interface {
	if into.Version == "" {
		into.Version = from.Version
	}

	for k, v := range from.Details {
		if into.Details == nil {
			into.Details = map[string]string{}
		}
		if _, ok := into.Details[k]; !ok {
			into.Details[k] = v
		}
	}

	return into
}
