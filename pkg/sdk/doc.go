// Package taskctx embeds the taskctx retrieval engine in a Go program.
//
// The client reads tasks and transcripts from the same SQLite database the
// taskctx server uses and ranks them in-process. Without an embedder it
// falls back to case-insensitive substring matching.
//
//	client, _ := taskctx.New(ctx,
//	    taskctx.WithSQLite("taskctx.db"),
//	    taskctx.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	hits, _ := client.Search(ctx, userID, "deploy rollback", "")
//	related, _ := client.TaskContext(ctx, userID, taskID)
//
// # Relationship graph
//
//	_ = client.Relate(ctx, userID, a, b, taskctx.DependsOn)
//	g, _ := client.Graph(ctx, userID, a, 0) // 0 selects the default depth
package taskctx
