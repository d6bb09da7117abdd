package analysis

import (
	"errors"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

var ErrEigen = errors.New("analysis: eigen decomposition failed")

// Jacobian approximates df/dx at (x, u) with central differences.
func Jacobian(sys dynamo.System, x dynamo.State, u dynamo.Control) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(n, n, nil)
	f := func(y, xs []float64) {
		copy(y, sys.Derive(dynamo.State(xs), u, 0))
	}
	fd.Jacobian(jac, f, x.Clone(), &fd.JacobianSettings{Formula: fd.Central})
	return jac
}

// Eigenvalues of the linearization at (x, u).
func Eigenvalues(sys dynamo.System, x dynamo.State, u dynamo.Control) ([]complex128, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(Jacobian(sys, x, u), mat.EigenNone); !ok {
		return nil, ErrEigen
	}
	return eig.Values(nil), nil
}

// Stable reports whether every eigenvalue has a negative real part.
func Stable(eigs []complex128) bool {
	if len(eigs) == 0 {
		return false
	}
	for _, e := range eigs {
		if real(e) >= 0 {
			return false
		}
	}
	return true
}
