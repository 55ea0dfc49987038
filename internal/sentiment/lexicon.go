package sentiment

// Sentiment word lists, English and Turkish combined. Matching is plain
// substring containment on lowercased text.
var positiveWords = []string{
	"thank", "thanks", "great", "excellent", "wonderful", "happy",
	"satisfied", "love", "amazing", "perfect", "awesome",
	"teşekkür", "memnun", "harika", "güzel", "mükemmel", "süper",
	"çok iyi", "başarılı", "mutlu", "sevindim", "beğendim", "muhteşem",
}

var negativeWords = []string{
	"problem", "issue", "bad", "terrible", "awful", "disappointed",
	"unhappy", "frustrated", "annoyed", "upset", "wrong",
	"sorun", "hata", "kötü", "berbat", "rezalet",
	"memnuniyetsiz", "mutsuz", "hayal kırıklığı", "üzgün", "kızgın",
}

var angryWords = []string{
	"unacceptable", "outrageous", "ridiculous", "furious", "lawsuit",
	"complaint", "worst", "hate", "disgusting", "horrible",
	"skandal", "kabul edilemez", "saçmalık", "utanç",
	"dava", "şikayet", "felaket", "çok kızgın",
}
