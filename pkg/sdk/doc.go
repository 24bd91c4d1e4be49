// Package siteqa provides a Go client for the siteqa HTTP API.
//
// A Client keeps the session ID the server assigns on the first call and sends
// it with every later call, so an index built by Index or Upload is the one Ask
// answers from.
//
//	client, _ := siteqa.New("http://localhost:8080")
//	_, _ = client.Index(ctx, siteqa.IndexRequest{URL: "https://www.uni-example.de/", Depth: 3})
//	res, _ := client.Ask(ctx, siteqa.AskRequest{Question: "What is the application deadline?"})
//	fmt.Println(res.Answer, res.Sources)
//
// Server errors come back as *APIError and match the exported sentinels:
//
//	if errors.Is(err, siteqa.ErrNoIndex) { ... }
package siteqa
