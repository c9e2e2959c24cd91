// Package pagination walks the catalog backend's skip/limit listing endpoint.
//
// The backend only exposes an offset cursor and no total page count, so
// batches are requested sequentially until one of three things happens:
//   - a batch shorter than the limit (or empty) signals the end of data
//   - a request fails, in which case the records gathered so far are kept
//   - the configured iteration cap is reached
//
// Example usage:
//
//	p := pagination.NewPaginator(backendClient, pagination.DefaultConfig())
//	result := p.Paginate(ctx, 100, 50)
//	for _, rec := range result.Records {
//		fmt.Println(rec.Slug)
//	}
//
// Failures are reported through Result.Outcome and Result.Err; Paginate
// never returns a Go error, so callers always get a usable (possibly
// partial) record list.
package pagination
