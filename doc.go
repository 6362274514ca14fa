// Package kwikdl resolves shared kwik video pages into direct download links.
//
// A page hides its link behind a packed script. Resolution runs in stages:
//   - fetch the shared page and decode the link to the hosting page
//   - fetch the hosting page and decode its download form
//   - submit the form with the session cookie and read the redirect
//
// Every stage is retried. When only the first stage succeeds the result is
// partial and carries the hosting-page link with a warning.
//
// Usage:
//
//	res, err := kwikdl.New().
//		WithScriptEngine(engine).
//		Resolve(ctx, "https://kwik.si/e/abc123")
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.FinalLink)
package kwikdl
