// Package annlsh implements approximate nearest-neighbor search over
// locality-sensitive hash families: SignRandomProjection (cosine), an L2
// p-stable family (Euclidean), MIPS (maximum inner product), and MinHash
// (Jaccard over integer sets).
//
// # Quick Start
//
//	import "github.com/liliang-cn/annlsh"
//
//	func main() {
//	    idx, err := annlsh.New[float32](8, 16, 128).Seed(42).Srp()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer idx.Close()
//
//	    ctx := context.Background()
//	    ids, err := idx.StoreVecs(ctx, trainingVectors)
//
//	    results, err := idx.QueryBucketIdsTopK(ctx, query, 10)
//	}
//
// # Choosing a family
//
// Srp buckets by the sign of random projections and approximates cosine
// similarity. L2 buckets p-stable projections into width-r cells and
// approximates Euclidean distance. Mips augments vectors with the
// Shrivastava-Li transform and reduces maximum inner product search to an
// L2 instance; it requires calling Fit (or StoreVecs, which fits from its
// own batch) before any point can be hashed. MinHash treats each vector as
// an integer-valued set and approximates Jaccard similarity.
//
// # Multi-probe
//
// Builder.MultiProbe(budget) enables querying nearby buckets in addition to
// the primary one, trading extra lookups for higher recall at a fixed K
// and L. SRP uses a step-wise bit-flip enumeration; L2 and MIPS use a
// query-directed enumeration ordered by distance to each bucket's edges.
//
// # Persistence
//
// Index.Save and Load encode the index as a self-describing binary format
// (magic "LSHX") for transport or storage; Builder.WithSQLBackend instead
// backs the index directly with a SQLite file via modernc.org/sqlite, with
// no CGO dependency.
package annlsh
