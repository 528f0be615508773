package engine

import (
	"sync"
	"time"

	"github.com/23skdu/longbow-pdist/internal/plan"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

// Launch broadcasts the serialized tiling descriptor to every active unit
// and blocks until all assigned pairs are written. Units share no mutable
// state: the input is read-only and the output indices of different units
// are disjoint, so no locking happens anywhere on this path.
func Launch(x *tensor.Matrix, y *tensor.Vector, workspace []byte, tiling []byte) error {
	desc, err := plan.DecodeDescriptor(tiling)
	if err != nil {
		return err
	}

	start := time.Now()
	activeUnits.Set(float64(desc.ActiveUnits))

	var wg sync.WaitGroup
	errs := make([]error, desc.ActiveUnits)
	for u := 0; u < int(desc.ActiveUnits); u++ {
		wg.Add(1)
		go func(unit int) {
			defer wg.Done()
			errs[unit] = Run(unit, x, y, workspace, tiling)
		}(u)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	pairsComputed.Add(float64(plan.OutputLen(int(desc.N))))
	computeDuration.Observe(time.Since(start).Seconds())
	return nil
}
