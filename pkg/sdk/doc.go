// Package pdfrag embeds the PDF question-answering pipeline in a Go program,
// without running the HTTP service.
//
// The client ingests PDFs into a vector store (Qdrant, Redis, Valkey, SQLite or
// in-process memory) and answers questions from the stored chunks:
//
//	client, _ := pdfrag.New(ctx,
//	    pdfrag.WithSQLite("vectors.db"),
//	    pdfrag.WithOpenAI("https://generativelanguage.googleapis.com/v1beta/openai/", apiKey),
//	)
//	defer client.Close()
//
//	res, _ := client.IngestFile(ctx, "manual.pdf")
//	answer, _ := client.Ask(ctx, "How do I reset the device?", 5)
//	fmt.Println(answer.Text)
//
// Bring your own models with WithEmbedder and WithGenerator.
package pdfrag
