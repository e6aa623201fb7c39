package scrape

import (
	"fmt"
	"strings"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/clusterconf"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/report"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/translate"
)

// jobWindow is how far back one scrape reaches. Scrapes run much more often
// than this, so consecutive windows overlap and a missed run loses nothing.
const jobWindow = "now-600"

// SacctCommand builds the job report command for a cluster, in the report
// dialect the cluster is configured for.
func SacctCommand(cluster *clusterconf.Cluster) string {
	var b strings.Builder
	b.WriteString(cluster.SacctPath)
	b.WriteString(" --allusers -X -S ")
	b.WriteString(jobWindow)
	b.WriteString(" -E now")
	if !cluster.WantsAllAccounts() {
		b.WriteString(" --accounts=")
		b.WriteString(strings.Join(cluster.Allocations, ","))
	}
	if cluster.ReportFormat == clusterconf.FormatFlat {
		fmt.Fprintf(&b, " --parsable --delimiter='%s' --format=%s",
			report.FlatDelimiter, strings.Join(translate.FlatJobColumns, ","))
	} else {
		b.WriteString(" --json")
	}
	return b.String()
}

// SinfoCommand builds the node report command. Nodes are only available in
// the structured dialect.
func SinfoCommand(cluster *clusterconf.Cluster) string {
	return cluster.SinfoPath + " --json"
}
