package gstreamer

import (
	"sort"

	"github.com/tinyzimmer/go-gst/gst"
)

// protocolElements maps a URI source element to the schemes it handles.
var protocolElements = map[string][]string{
	"filesrc":     {"file"},
	"souphttpsrc": {"http", "https"},
	"rtspsrc":     {"rtsp", "rtspt", "rtsps"},
	"udpsrc":      {"udp"},
	"srtsrc":      {"srt"},
	"rtmpsrc":     {"rtmp"},
	"rtmp2src":    {"rtmp", "rtmps"},
	"dvbsrc":      {"dvb"},
	"v4l2src":     {"v4l2"},
}

// URIProtocols reports the schemes whose source element is installed.
func (b *Backend) URIProtocols() []string {
	initOnce.Do(func() {
		gst.Init(nil)
	})

	seen := make(map[string]struct{})
	for factory, schemes := range protocolElements {
		elem, err := gst.NewElement(factory)
		if err != nil {
			b.logger.Debug("uri source element unavailable", "element", factory)
			continue
		}
		elem.SetState(gst.StateNull)
		for _, s := range schemes {
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
