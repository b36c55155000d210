package distance

import "golang.org/x/sys/cpu"

// lanes is the SIMD-style unroll width: kernels below process inputs
// in groups of 8, the same lane width spec.md's kernel contract names.
const lanes = 8

// simdCapable caches whether the host CPU supports the wide
// instruction set the lane-unrolled kernels are tuned for. Resolved
// once per process (§9: "resolved once per process, not per call"),
// unlike patrikhermansson/hann's core/cpu_check.go, which panics at
// init if AVX is missing — this package degrades to the scalar path
// instead, since refusing to run at all is too strict for a library
// that must also work on non-x86 hosts.
var simdCapable = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD

func hasSIMD() bool {
	return simdCapable
}

// squaredEuclideanSIMD computes Σ(a−b)² eight lanes at a time with
// four independent accumulators, matching a fused-multiply-add
// horizontal-reduction shape without requiring cgo or a compiler
// intrinsic — the accumulator interleaving is what lets the Go
// compiler's own auto-vectorization (and any future assembly
// backend) pipeline the eight lanes independently before the final
// horizontal sum.
func squaredEuclideanSIMD(a, b []float32) float32 {
	var acc0, acc1, acc2, acc3 float32
	for i := 0; i < len(a); i += lanes {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]
		acc0 += d0*d0 + d4*d4
		acc1 += d1*d1 + d5*d5
		acc2 += d2*d2 + d6*d6
		acc3 += d3*d3 + d7*d7
	}
	return acc0 + acc1 + acc2 + acc3
}

func dotSIMD(a, b []float32) float32 {
	var acc0, acc1, acc2, acc3 float32
	for i := 0; i < len(a); i += lanes {
		acc0 += a[i]*b[i] + a[i+4]*b[i+4]
		acc1 += a[i+1]*b[i+1] + a[i+5]*b[i+5]
		acc2 += a[i+2]*b[i+2] + a[i+6]*b[i+6]
		acc3 += a[i+3]*b[i+3] + a[i+7]*b[i+7]
	}
	return acc0 + acc1 + acc2 + acc3
}

func cosinePartsSIMD(a, b []float32) (dot, normA, normB float32) {
	var d0, d1, d2, d3 float32
	var na0, na1, na2, na3 float32
	var nb0, nb1, nb2, nb3 float32
	for i := 0; i < len(a); i += lanes {
		for l := 0; l < lanes; l += 4 {
			j := i + l
			d0 += a[j] * b[j]
			d1 += a[j+1] * b[j+1]
			d2 += a[j+2] * b[j+2]
			d3 += a[j+3] * b[j+3]
			na0 += a[j] * a[j]
			na1 += a[j+1] * a[j+1]
			na2 += a[j+2] * a[j+2]
			na3 += a[j+3] * a[j+3]
			nb0 += b[j] * b[j]
			nb1 += b[j+1] * b[j+1]
			nb2 += b[j+2] * b[j+2]
			nb3 += b[j+3] * b[j+3]
		}
	}
	return d0 + d1 + d2 + d3, na0 + na1 + na2 + na3, nb0 + nb1 + nb2 + nb3
}
