package catalog

// DefaultStopwords is a small English function-word seed list. It is not
// applied automatically; callers opt in via AddStopwords (the CLI and web
// API expose this as a flag/setting).
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "no", "not", "of", "on", "or",
	"so", "that", "the", "their", "then", "there", "these", "they",
	"this", "to", "was", "we", "were", "will", "with", "you", "i",
	"he", "she", "his", "her", "have", "has", "had", "do", "does",
	"did", "what", "when", "where", "which", "who", "how", "why",
}
