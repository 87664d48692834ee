package observability

// OpenInference span conventions understood by Phoenix.
const (
	AttrSpanKind    = "openinference.span.kind"
	AttrInputValue  = "input.value"
	AttrOutputValue = "output.value"
	AttrProjectName = "openinference.project.name"

	SpanKindChain = "CHAIN"
	SpanKindLLM   = "LLM"
	SpanKindTool  = "TOOL"
)

// Span names.
const (
	SpanRAGAgent      = "rag_agent"
	SpanLLMRequest    = "llm.request"
	SpanToolExecution = "tool.execution"
	SpanRetrieval     = "retriever.search"
)

// Attribute keys for LLM and tool spans.
const (
	AttrLLMModel        = "llm.model_name"
	AttrLLMTokensInput  = "llm.token_count.prompt"
	AttrLLMTokensOutput = "llm.token_count.completion"
	AttrToolName        = "tool.name"
)
