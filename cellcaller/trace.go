package cellcaller

import "github.com/grailbio/base/log"

// logTopologyTrace reproduces cell_caller.cpp's debug trace of every
// evaluated topology's size, MAP genotype indices, and log-evidence,
// gated on the debug log level exactly as markduplicates/optical_detector.go
// gates its own per-record trace with log.At(log.Debug).
func logTopologyTrace(size int, t evaluatedTopology) {
	if !log.At(log.Debug) {
		return
	}
	if t.inferences.Phylogeny == nil {
		log.Debug.Printf("cellcaller: topology size=%d log_evidence=-Inf (underflow)", size)
		return
	}
	for _, gv := range t.inferences.Phylogeny.Groups() {
		mapIdx := argmaxFloat(gv.Value.GenotypePosteriors)
		log.Debug.Printf("cellcaller: topology size=%d group=%d map_genotype=%d log_evidence=%f",
			size, gv.ID, mapIdx, t.inferences.LogEvidence)
	}
}

func argmaxFloat(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
