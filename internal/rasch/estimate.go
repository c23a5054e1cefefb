package rasch

import (
	"fmt"
	"math"

	"github.com/mmogame/backend/internal/models"
)

// DefaultMaxIterations is the fixed number of JMLE passes.
const DefaultMaxIterations = 150

type Response int8

const (
	Missing Response = -1
	Wrong   Response = 0
	Correct Response = 1
)

// Responses is a sparse person-by-item matrix. Cells[i][j] is the answer of
// Persons[i] to Items[j]; Missing marks items the person never saw.
type Responses struct {
	Persons []int64
	Items   []int64
	Cells   [][]Response
}

func (r *Responses) Validate() error {
	if len(r.Cells) != len(r.Persons) {
		return fmt.Errorf("responses: %d rows for %d persons", len(r.Cells), len(r.Persons))
	}
	for i, row := range r.Cells {
		if len(row) != len(r.Items) {
			return fmt.Errorf("responses: row %d has %d cells for %d items", i, len(row), len(r.Items))
		}
		for j, x := range row {
			if x != Missing && x != Wrong && x != Correct {
				return fmt.Errorf("responses: cell (%d, %d) = %d", i, j, x)
			}
		}
	}
	return nil
}

// Result carries one estimate per item and per person, each tagged with
// its id so nothing downstream depends on array position.
type Result struct {
	Items   []models.ItemEstimate
	Persons []models.PersonEstimate
}

// Estimate runs joint maximum likelihood estimation of the Rasch model for
// exactly maxIterations passes, then centers the scale on the mean of the
// non-extreme item difficulties and computes per-item fit statistics.
func Estimate(r *Responses, maxIterations int) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	nP, nI := len(r.Persons), len(r.Items)
	theta := make([]float64, nP)
	b := make([]float64, nI)

	for iter := 0; iter < maxIterations; iter++ {
		for j := 0; j < nI; j++ {
			var num, den float64
			for i := 0; i < nP; i++ {
				x := r.Cells[i][j]
				if x == Missing {
					continue
				}
				p := Probability(theta[i], b[j])
				num += float64(x) - p
				den += Information(p)
			}
			if den != 0 {
				b[j] -= num / den
			}
		}
		for j := range b {
			b[j] = clamp(b[j], MinB, MaxB)
		}

		for i := 0; i < nP; i++ {
			var num, den float64
			for j := 0; j < nI; j++ {
				x := r.Cells[i][j]
				if x == Missing {
					continue
				}
				p := Probability(theta[i], b[j])
				num += float64(x) - p
				den += Information(p)
			}
			if den != 0 {
				theta[i] += num / den
			}
		}
		for i := range theta {
			theta[i] = clamp(theta[i], MinTheta, MaxTheta)
		}
	}

	extremeB := make([]bool, nI)
	var sum float64
	var n int
	for j, v := range b {
		extremeB[j] = isExtremeB(v)
		if !extremeB[j] {
			sum += v
			n++
		}
	}
	extremeTheta := make([]bool, nP)
	for i, v := range theta {
		extremeTheta[i] = isExtremeTheta(v)
	}
	if n > 0 {
		mean := sum / float64(n)
		for j := range b {
			if !extremeB[j] {
				b[j] -= mean
			}
		}
		for i := range theta {
			if !extremeTheta[i] {
				theta[i] -= mean
			}
		}
	}

	res := &Result{
		Items:   make([]models.ItemEstimate, nI),
		Persons: make([]models.PersonEstimate, nP),
	}
	for j := 0; j < nI; j++ {
		res.Items[j] = itemFit(r, j, theta, b[j])
		res.Items[j].Extreme = extremeB[j]
	}
	for i := 0; i < nP; i++ {
		res.Persons[i] = models.PersonEstimate{PlayerID: r.Persons[i], Theta: theta[i], Extreme: extremeTheta[i]}
	}
	return res, nil
}

// itemFit computes the standard error, frequencies and infit/outfit of item j.
func itemFit(r *Responses, j int, theta []float64, bj float64) models.ItemEstimate {
	est := models.ItemEstimate{ItemID: r.Items[j], B: bj}

	var sumW, sumResid2, sumZ2 float64
	var df int
	for i := range r.Persons {
		x := r.Cells[i][j]
		switch x {
		case Missing:
			est.CountNull++
			continue
		case Correct:
			est.Count1++
		default:
			est.Count0++
		}
		p := Probability(theta[i], bj)
		w := Information(p)
		resid := float64(x) - p
		sumW += w
		sumResid2 += resid * resid
		if w > 0 {
			sumZ2 += resid * resid / w
		}
		df++
	}

	if sumW > 0 {
		est.SE = ptr(1 / math.Sqrt(sumW))
		est.Infit = ptr(sumResid2 / sumW)
	}
	if df > 0 {
		est.Outfit = ptr(sumZ2 / float64(df))
		sd := math.Sqrt(2 / float64(df))
		if est.Infit != nil {
			est.StdInfit = ptr((*est.Infit - 1) / sd)
		}
		est.StdOutfit = ptr((*est.Outfit - 1) / sd)
		est.Percent = ptr(float64(est.Count1) / float64(est.Count1+est.Count0) * 100)
	}
	return est
}

func ptr(v float64) *float64 { return &v }
