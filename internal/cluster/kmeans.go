// Package cluster partitions stored embeddings into topical groups with
// k-means and writes the resulting labels back onto record metadata. The
// numerics are deliberately deterministic: a fixed seed, kmeans++ seeding,
// and a fixed number of restarts keeping the lowest-inertia run, so the same
// vectors and k always produce the same partition.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/54b3r/ragchat-go/internal/rag"
)

const (
	// defaultSeed fixes centroid initialization so clustering is
	// reproducible across runs.
	defaultSeed = 42

	// defaultRestarts is the number of independent kmeans++ initializations;
	// the run with the lowest inertia wins.
	defaultRestarts = 10

	// defaultMaxIterations bounds Lloyd refinement per restart.
	defaultMaxIterations = 300
)

// KMeans is a deterministic Lloyd's-style k-means clusterer.
type KMeans struct {
	// seed is the RNG seed for centroid initialization.
	seed int64

	// restarts is the number of independent initializations to try.
	restarts int

	// maxIterations bounds refinement iterations per restart.
	maxIterations int
}

// NewKMeans constructs a KMeans with the fixed default seed and restart
// count. Both are part of the determinism contract, so there are no knobs
// for them on the public constructor.
func NewKMeans() *KMeans {
	return &KMeans{
		seed:          defaultSeed,
		restarts:      defaultRestarts,
		maxIterations: defaultMaxIterations,
	}
}

// Assignment is the outcome of one Assign call.
type Assignment struct {
	// Labels[i] is the cluster label of vectors[i]. Callers must pair
	// labels with record identity immediately; the positional coupling ends
	// at this boundary.
	Labels []int

	// KActual is the realized cluster count, min(kRequested, len(vectors)).
	KActual int

	// Reduced reports that KActual is lower than the requested k because
	// there were fewer vectors than requested clusters.
	Reduced bool
}

// Assign partitions vectors into min(kRequested, len(vectors)) groups
// minimizing within-group sum of squared distances. Fewer than two vectors
// is not an error in the fatal sense: it returns rag.ErrInsufficientData,
// which callers report and then proceed without labels.
func (km *KMeans) Assign(vectors [][]float32, kRequested int) (Assignment, error) {
	if kRequested < 1 {
		return Assignment{}, fmt.Errorf("cluster: k must be >= 1, got %d", kRequested)
	}
	if len(vectors) < 2 {
		return Assignment{}, fmt.Errorf("cluster: %d vectors: %w", len(vectors), rag.ErrInsufficientData)
	}

	k := kRequested
	if len(vectors) < k {
		k = len(vectors)
	}

	points := toFloat64(vectors)

	rng := rand.New(rand.NewSource(km.seed)) //nolint:gosec // determinism is the point, not security
	bestInertia := math.Inf(1)
	var bestLabels []int
	for r := 0; r < km.restarts; r++ {
		labels, inertia := km.run(points, k, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}

	return Assignment{
		Labels:  bestLabels,
		KActual: k,
		Reduced: k < kRequested,
	}, nil
}

// run performs one kmeans++ initialization followed by Lloyd refinement and
// returns the final labels with their inertia.
func (km *KMeans) run(points [][]float64, k int, rng *rand.Rand) ([]int, float64) {
	centroids := seedCentroids(points, k, rng)
	labels := make([]int, len(points))

	for iter := 0; iter < km.maxIterations; iter++ {
		changed := assignLabels(points, centroids, labels)
		recomputeCentroids(points, labels, centroids, rng)
		if !changed {
			break
		}
	}

	return labels, inertia(points, centroids, labels)
}

// seedCentroids picks k initial centroids with kmeans++: the first uniformly
// at random, each subsequent one with probability proportional to its squared
// distance from the nearest centroid chosen so far.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, cloneVec(first))

	dists := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if sq := squaredDistance(p, c); sq < d {
					d = sq
				}
			}
			dists[i] = d
			total += d
		}

		// All remaining points coincide with existing centroids; fall back
		// to uniform choice so seeding always terminates.
		if total == 0 {
			centroids = append(centroids, cloneVec(points[rng.Intn(len(points))]))
			continue
		}

		target := rng.Float64() * total
		var cum float64
		chosen := len(points) - 1
		for i, d := range dists {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVec(points[chosen]))
	}

	return centroids
}

// assignLabels assigns each point to its nearest centroid and reports
// whether any label changed.
func assignLabels(points [][]float64, centroids [][]float64, labels []int) bool {
	changed := false
	for i, p := range points {
		best := 0
		bestDist := math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(p, centroid); d < bestDist {
				bestDist = d
				best = c
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recomputeCentroids moves each centroid to the mean of its members. A
// centroid that lost all members is re-seeded to a random point so k is
// preserved.
func recomputeCentroids(points [][]float64, labels []int, centroids [][]float64, rng *rand.Rand) {
	dim := len(points[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for i, p := range points {
		l := labels[i]
		counts[l]++
		for d, v := range p {
			sums[l][d] += v
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			centroids[c] = cloneVec(points[rng.Intn(len(points))])
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

// inertia is the within-cluster sum of squared distances to centroids.
func inertia(points [][]float64, centroids [][]float64, labels []int) float64 {
	var total float64
	for i, p := range points {
		total += squaredDistance(p, centroids[labels[i]])
	}
	return total
}

// squaredDistance returns the squared Euclidean distance between a and b.
func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// toFloat64 widens embedding vectors for stable accumulation.
func toFloat64(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		w := make([]float64, len(v))
		for j, f := range v {
			w[j] = float64(f)
		}
		out[i] = w
	}
	return out
}

// cloneVec copies a vector so centroid updates never alias input points.
func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
