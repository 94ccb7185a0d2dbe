package romaji

import "strings"

// kanaTable maps katakana syllables to Hepburn romaji. Digraphs (キャ etc.)
// must be looked up before single kana, so KanaToRomaji tries two-rune
// sequences first.
var kanaTable = map[string]string{
	"ア": "a", "イ": "i", "ウ": "u", "エ": "e", "オ": "o",
	"カ": "ka", "キ": "ki", "ク": "ku", "ケ": "ke", "コ": "ko",
	"サ": "sa", "シ": "shi", "ス": "su", "セ": "se", "ソ": "so",
	"タ": "ta", "チ": "chi", "ツ": "tsu", "テ": "te", "ト": "to",
	"ナ": "na", "ニ": "ni", "ヌ": "nu", "ネ": "ne", "ノ": "no",
	"ハ": "ha", "ヒ": "hi", "フ": "fu", "ヘ": "he", "ホ": "ho",
	"マ": "ma", "ミ": "mi", "ム": "mu", "メ": "me", "モ": "mo",
	"ヤ": "ya", "ユ": "yu", "ヨ": "yo",
	"ラ": "ra", "リ": "ri", "ル": "ru", "レ": "re", "ロ": "ro",
	"ワ": "wa", "ヲ": "o", "ン": "n",
	"ガ": "ga", "ギ": "gi", "グ": "gu", "ゲ": "ge", "ゴ": "go",
	"ザ": "za", "ジ": "ji", "ズ": "zu", "ゼ": "ze", "ゾ": "zo",
	"ダ": "da", "ヂ": "ji", "ヅ": "zu", "デ": "de", "ド": "do",
	"バ": "ba", "ビ": "bi", "ブ": "bu", "ベ": "be", "ボ": "bo",
	"パ": "pa", "ピ": "pi", "プ": "pu", "ペ": "pe", "ポ": "po",
	"キャ": "kya", "キュ": "kyu", "キョ": "kyo",
	"シャ": "sha", "シュ": "shu", "ショ": "sho",
	"チャ": "cha", "チュ": "chu", "チョ": "cho",
	"ニャ": "nya", "ニュ": "nyu", "ニョ": "nyo",
	"ヒャ": "hya", "ヒュ": "hyu", "ヒョ": "hyo",
	"ミャ": "mya", "ミュ": "myu", "ミョ": "myo",
	"リャ": "rya", "リュ": "ryu", "リョ": "ryo",
	"ギャ": "gya", "ギュ": "gyu", "ギョ": "gyo",
	"ジャ": "ja", "ジュ": "ju", "ジョ": "jo",
	"ビャ": "bya", "ビュ": "byu", "ビョ": "byo",
	"ピャ": "pya", "ピュ": "pyu", "ピョ": "pyo",
	"ファ": "fa", "フィ": "fi", "フェ": "fe", "フォ": "fo",
	"ティ": "ti", "ディ": "di", "ヴ": "vu",
	"ウィ": "wi", "ウェ": "we", "ウォ": "wo",
	"ッ": "", "ー": "",
}

// isVowel reports whether b is a romaji vowel.
func isVowel(b byte) bool {
	switch b {
	case 'a', 'i', 'u', 'e', 'o':
		return true
	}
	return false
}

// KanaToRomaji transliterates kana text to Hepburn-style romaji.
//
// Hiragana is folded to katakana first. The sokuon (ッ) doubles the following
// consonant; the chōonpu (ー) repeats the preceding vowel. Runes with no kana
// mapping (latin letters, digits, punctuation) pass through lowercased, so
// mixed-script input degrades to something still comparable by edit distance.
func KanaToRomaji(kana string) string {
	runes := []rune(hiraganaToKatakana(kana))
	var b strings.Builder
	pendingSokuon := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == 'ッ' {
			pendingSokuon = true
			continue
		}
		if r == 'ー' {
			// Long-vowel mark: repeat the last emitted vowel.
			s := b.String()
			if len(s) > 0 && isVowel(s[len(s)-1]) {
				b.WriteByte(s[len(s)-1])
			}
			continue
		}

		// Digraph lookup first.
		syl := ""
		if i+1 < len(runes) {
			if v, ok := kanaTable[string(runes[i:i+2])]; ok {
				syl = v
				i++
			}
		}
		if syl == "" {
			if v, ok := kanaTable[string(r)]; ok {
				syl = v
			} else {
				syl = strings.ToLower(string(r))
			}
		}

		if pendingSokuon && len(syl) > 0 && !isVowel(syl[0]) {
			// Hepburn writes っち as "tchi", other consonants double.
			if strings.HasPrefix(syl, "ch") {
				b.WriteByte('t')
			} else {
				b.WriteByte(syl[0])
			}
		}
		pendingSokuon = false
		b.WriteString(syl)
	}
	return b.String()
}

// hiraganaToKatakana shifts hiragana runes into the katakana block.
func hiraganaToKatakana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'ぁ' && r <= 'ゖ' {
			runes[i] = r + ('ァ' - 'ぁ')
		}
	}
	return string(runes)
}
