package translate

import (
	"regexp"
	"strconv"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// GRES strings come in two shapes, with and without socket affinity:
//
//	gpu:v100:4
//	gpu:v100:4(S:0-1)
var (
	gresRe        = regexp.MustCompile(`gpu:(\w*?):(\d+)`)
	gresSocketsRe = regexp.MustCompile(`gpu:(\w*?):(\d+)\(S:(.*)\)`)
	vramFeatureRe = regexp.MustCompile(`(\w*?),(\w*?),([0-9]+)gb`)
)

// gpuDisplayNames disambiguates GPU models that Slurm reports under one name
// but that exist in several VRAM configurations. The key is the reported
// name plus the VRAM size read from the node's feature string.
var gpuDisplayNames = map[string]string{
	"v100-32": "v100l",
	"p100-16": "p100l",
}

// GresDescription decomposes a node's GRES string into a GPU descriptor,
// using the feature string to tell apart VRAM variants of the same model.
// Nodes without GPUs, and GRES strings that do not match the known shapes,
// yield the zero descriptor.
func GresDescription(gres, features string) record.GpuInfo {
	var info record.GpuInfo

	if m := gresSocketsRe.FindStringSubmatch(gres); m != nil {
		info.Name = m[1]
		info.Number, _ = strconv.ParseInt(m[2], 10, 64)
		info.AssociatedSockets = m[3]
	} else if m := gresRe.FindStringSubmatch(gres); m != nil {
		info.Name = m[1]
		info.Number, _ = strconv.ParseInt(m[2], 10, 64)
	} else {
		return record.GpuInfo{}
	}

	info.CwName = info.Name
	if m := vramFeatureRe.FindStringSubmatch(features); m != nil {
		if display, ok := gpuDisplayNames[info.Name+"-"+m[3]]; ok {
			info.CwName = display
		}
	}
	return info
}
