// Package ranker implements C4: given a confirmed incident's
// attribution window, it ranks every active PID by how strongly its
// behavior explains the host-wide spike.
package ranker

import (
	"math"
	"sort"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/stats"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// Candidate is one pid's scored contribution, kept internal to ranking
// so Rank can return the public models.RankedSuspect projection.
type candidate struct {
	pid      int32
	name     string
	cpuShare float64
	ramShare float64
	anomaly  float64
	energy   float64
	corr     float64
	score    float64
}

// Result is the full C4 output for one incident.
type Result struct {
	Ranked     []models.RankedSuspect
	Culprit    *models.CulpritProcess
	Impact     models.ResourceImpact
	Confidence float64
}

// Rank scores every pid present in snapshots against the host baseline
// and the attribution-window host samples.
func Rank(cfg config.RankerConfig, hostBaseline, hostWindow []models.HostSample, snapshots map[int32][]models.ProcessSnapshot) Result {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}

	mu, cov, ok := featureMeanCov(hostBaseline)
	cpuMedian, cpuMAD := stats.MedianMAD(hostSeries(hostBaseline, func(s models.HostSample) float64 { return s.CPUPct }))
	ramMedian, ramMAD := stats.MedianMAD(hostSeries(hostBaseline, func(s models.HostSample) float64 { return s.RAMPct }))

	hostCPUSeries := hostSeries(hostWindow, func(s models.HostSample) float64 { return s.CPUPct })
	totalHostCPU := sumPositive(hostCPUSeries)
	totalHostRAM := sumPositive(hostSeries(hostWindow, func(s models.HostSample) float64 { return s.RAMPct }))

	var candidates []candidate
	for pid, snaps := range snapshots {
		if len(snaps) == 0 {
			continue
		}
		name := latestName(snaps)

		meanCPU, meanRAM := meanCPURAM(snaps)
		cpuSum := sumPositive(snapshotSeries(snaps, func(s models.ProcessSnapshot) float64 { return s.CPUPct }))
		ramSum := sumPositive(snapshotSeries(snaps, func(s models.ProcessSnapshot) float64 { return s.RAMPct }))

		cpuShare := safeDiv(cpuSum, totalHostCPU)
		ramShare := safeDiv(ramSum, totalHostRAM)
		cpuShare = clip01(cpuShare)
		ramShare = clip01(ramShare)

		var dSquared float64
		if ok {
			dSquared = mahalanobisSquared(meanCPU-mu[0], meanRAM-mu[1], cov)
		} else {
			zc := stats.RobustZ(meanCPU, cpuMedian, cpuMAD)
			zr := stats.RobustZ(meanRAM, ramMedian, ramMAD)
			dSquared = zc*zc + zr*zr
		}
		anomaly := sanitize(1 - math.Exp(-dSquared/8))
		energy := sanitize(0.7*cpuShare + 0.3*ramShare)
		corr := sanitize(correlation(hostCPUSeries, snapshotSeries(snaps, func(s models.ProcessSnapshot) float64 { return s.CPUPct })))

		score := sanitize(0.4*anomaly + 0.4*energy + 0.2*corr)
		if anomaly == 0 && energy == 0 && corr == 0 {
			continue
		}

		candidates = append(candidates, candidate{
			pid: pid, name: name,
			cpuShare: cpuShare, ramShare: ramShare,
			anomaly: anomaly, energy: energy, corr: corr,
			score: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.cpuShare != b.cpuShare {
			return a.cpuShare > b.cpuShare
		}
		if a.ramShare != b.ramShare {
			return a.ramShare > b.ramShare
		}
		return a.pid < b.pid
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	ranked := make([]models.RankedSuspect, len(candidates))
	for i, c := range candidates {
		ranked[i] = models.RankedSuspect{PID: c.pid, Name: c.name, Score: c.score}
	}

	result := Result{Ranked: ranked, Impact: models.ResourceImpact{
		CPUSpikePercent: lastOr(hostCPUSeries, 0),
		RAMSpikePercent: lastOr(hostSeries(hostWindow, func(s models.HostSample) float64 { return s.RAMPct }), 0),
	}}
	if len(candidates) == 0 {
		return result
	}

	top := candidates[0]
	var latestCPU, latestRAM, latestDisk float64
	if snaps := snapshots[top.pid]; len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		latestCPU, latestRAM, latestDisk = last.CPUPct, last.RAMPct, last.DiskBytes
	}
	result.Culprit = &models.CulpritProcess{
		PID: top.pid, Name: top.name,
		CPUPct: latestCPU, RAMPct: latestRAM, DiskBytes: latestDisk,
	}
	best := math.Max(top.anomaly, math.Max(top.energy, top.corr))
	if best >= 0.5 {
		result.Confidence = math.Min(1, top.score*1.25)
	} else {
		result.Confidence = top.score
	}
	return result
}

func featureMeanCov(samples []models.HostSample) (mu [2]float64, cov [2][2]float64, ok bool) {
	n := len(samples)
	if n == 0 {
		return mu, cov, false
	}
	var sumCPU, sumRAM float64
	for _, s := range samples {
		sumCPU += s.CPUPct
		sumRAM += s.RAMPct
	}
	mu[0] = sumCPU / float64(n)
	mu[1] = sumRAM / float64(n)

	var varCPU, varRAM, covCPURAM float64
	for _, s := range samples {
		dc, dr := s.CPUPct-mu[0], s.RAMPct-mu[1]
		varCPU += dc * dc
		varRAM += dr * dr
		covCPURAM += dc * dr
	}
	denom := float64(n)
	cov[0][0] = varCPU / denom
	cov[1][1] = varRAM / denom
	cov[0][1] = covCPURAM / denom
	cov[1][0] = cov[0][1]

	det := cov[0][0]*cov[1][1] - cov[0][1]*cov[1][0]
	if math.Abs(det) < 1e-9 {
		return mu, cov, false
	}
	return mu, cov, true
}

// mahalanobisSquared computes d^2 for the 2x2 covariance matrix cov
// given the centered vector (dc, dr).
func mahalanobisSquared(dc, dr float64, cov [2][2]float64) float64 {
	det := cov[0][0]*cov[1][1] - cov[0][1]*cov[1][0]
	if math.Abs(det) < 1e-9 {
		return 0
	}
	invA := cov[1][1] / det
	invB := -cov[0][1] / det
	invD := cov[0][0] / det
	return dc*(invA*dc+invB*dr) + dr*(invB*dc+invD*dr)
}

func correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 10 {
		return 0
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var num, denA, denB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return 0
	}
	cos := num / math.Sqrt(denA*denB)
	return math.Max(0, cos)
}

func hostSeries(samples []models.HostSample, f func(models.HostSample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

func snapshotSeries(snaps []models.ProcessSnapshot, f func(models.ProcessSnapshot) float64) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		out[i] = f(s)
	}
	return out
}

func meanCPURAM(snaps []models.ProcessSnapshot) (cpu, ram float64) {
	if len(snaps) == 0 {
		return 0, 0
	}
	var sumCPU, sumRAM float64
	for _, s := range snaps {
		sumCPU += s.CPUPct
		sumRAM += s.RAMPct
	}
	n := float64(len(snaps))
	return sumCPU / n, sumRAM / n
}

func latestName(snaps []models.ProcessSnapshot) string {
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Name != "" {
			return snaps[i].Name
		}
	}
	return ""
}

func sumPositive(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		if x > 0 {
			total += x
		}
	}
	return total
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func lastOr(xs []float64, fallback float64) float64 {
	if len(xs) == 0 {
		return fallback
	}
	return xs[len(xs)-1]
}
