package aismsg

// Static reference tables, read-only after init.

import (
	"strconv"

	ais "github.com/andmarios/aislib"
)

// Country returns the flag state for a set of Maritime Identification Digits.
func Country(mid int) (string, bool) {
	c, ok := midCountries[mid]
	return c, ok
}

// ShipTypeText returns the textual meaning of a ship type code.
// The code may arrive as a number or as free text; anything that isn't a
// known numeric code is returned unchanged.
func ShipTypeText(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return code
	}
	if meaning, ok := shipTypeMeanings[n]; ok {
		return meaning
	}
	if meaning, ok := ais.ShipType[n]; ok && meaning != "" {
		return meaning
	}
	return code
}

// midCountries maps Maritime Identification Digits to the flag country.
var midCountries = map[int]string{
	201: "Albania", 202: "Andorra", 203: "Austria", 204: "Azores", 205: "Belgium",
	206: "Belarus", 207: "Bulgaria", 208: "Vatican", 209: "Cyprus", 210: "Cyprus",
	211: "Germany", 212: "Cyprus", 213: "Georgia", 214: "Moldova", 215: "Malta",
	218: "Germany", 219: "Denmark", 220: "Denmark", 224: "Spain", 225: "Spain",
	226: "France", 227: "France", 228: "France", 229: "Malta", 230: "Finland",
	231: "Faeroe Islands", 232: "United Kingdom", 233: "United Kingdom", 234: "United Kingdom",
	235: "United Kingdom", 236: "Gibraltar", 237: "Greece", 238: "Croatia", 239: "Greece",
	240: "Greece", 241: "Greece", 242: "Morocco", 243: "Hungary", 244: "Netherlands",
	245: "Netherlands", 246: "Netherlands", 247: "Italy", 248: "Malta", 249: "Malta",
	250: "Ireland", 251: "Iceland", 252: "Liechtenstein", 253: "Luxembourg", 254: "Monaco",
	255: "Portugal", 256: "Malta", 257: "Norway", 258: "Norway", 259: "Norway",
	261: "Poland", 262: "Montenegro", 263: "Portugal", 264: "Romania", 265: "Sweden",
	266: "Sweden", 267: "Slovakia", 268: "San Marino", 269: "Switzerland", 270: "Czech Republic",
	271: "Turkey", 272: "Ukraine", 273: "Russia", 274: "Macedonia", 275: "Latvia",
	276: "Estonia", 277: "Lithuania", 278: "Slovenia", 279: "Serbia", 301: "Anguilla",
	303: "Alaska", 305: "Antigua and Barbuda", 306: "Netherlands Antilles", 307: "Aruba",
	308: "Bahamas", 309: "Bahamas", 310: "Bermuda", 311: "Bahamas", 316: "Canada",
	319: "Cayman Islands", 330: "Greenland", 338: "United States", 366: "United States",
	367: "United States", 368: "United States", 369: "United States", 370: "Panama",
	371: "Panama", 372: "Panama", 373: "Panama", 375: "Saint Vincent and the Grenadines",
	376: "Saint Vincent and the Grenadines", 377: "Saint Vincent and the Grenadines",
	378: "British Virgin Islands", 379: "British Virgin Islands", 401: "Afghanistan",
	403: "Saudi Arabia", 405: "Bangladesh", 408: "Iran", 412: "China", 413: "China",
	414: "China", 416: "Taiwan", 417: "Sri Lanka", 419: "India", 422: "Japan",
	423: "Japan", 431: "Hong Kong", 432: "South Korea", 440: "Azerbaijan", 441: "Kazakhstan",
	450: "Russian Federation", 451: "Russian Federation", 452: "Russian Federation",
	453: "Russian Federation", 455: "Mongolia", 456: "North Korea", 457: "North Korea",
	470: "Turkey", 471: "Syria", 472: "Lebanon", 473: "Jordan", 475: "Yemen",
	477: "Hong Kong", 478: "Bosnia and Herzegovina", 501: "Australia", 503: "Australia",
	506: "Myanmar", 508: "Papua New Guinea", 510: "Micronesia", 511: "Palau",
	512: "Nauru", 514: "Tuvalu", 515: "Cambodia", 516: "Christmas Island",
	520: "Thailand", 525: "Singapore", 529: "Malaysia", 533: "Malaysia", 536: "Brunei",
	538: "Philippines", 542: "South Pacific", 544: "New Zealand", 546: "New Zealand",
	548: "Cook Islands", 553: "Fiji", 555: "Tonga", 557: "New Caledonia",
	559: "French Polynesia", 561: "Wallis and Futuna", 563: "Singapore", 564: "Singapore",
	565: "Singapore", 566: "Singapore", 567: "Singapore", 570: "Solomon Islands",
	572: "Vanuatu", 574: "Guam", 576: "Samoa", 577: "American Samoa", 601: "South Africa",
	603: "Angola", 605: "Algeria", 607: "Saint Paul", 608: "Ascension Island",
	609: "Burundi", 610: "Benin", 611: "Botswana", 612: "Central African Republic",
	613: "Cameroon", 615: "Congo", 616: "Comoros", 617: "Congo", 618: "Djibouti",
	619: "Egypt", 620: "Ethiopia", 621: "Gabon", 622: "Gambia", 624: "Ghana",
	625: "Guinea", 626: "Ivory Coast", 627: "Kenya", 629: "Madagascar", 630: "Malawi",
	631: "Mali", 632: "Mauritania", 633: "Mauritius", 634: "Morocco", 635: "Mozambique",
	636: "Namibia", 637: "Niger", 638: "Nigeria", 642: "Seychelles", 644: "Sudan",
	645: "Swaziland", 647: "Tanzania", 649: "Togo", 650: "Tunisia", 654: "Zambia",
	655: "Zimbabwe", 657: "South Sudan", 659: "Eritrea", 660: "Mayotte", 661: "Réunion",
	662: "Saint Pierre and Miquelon", 663: "Saint Helena", 664: "Saint Kitts and Nevis",
	665: "Anguilla", 666: "Antigua and Barbuda", 667: "Aruba", 668: "Bahamas",
	669: "Barbados", 670: "Bermuda", 672: "British Virgin Islands", 674: "Cayman Islands",
	675: "Cuba", 676: "Dominica", 677: "Dominican Republic", 678: "Grenada",
	679: "Guadeloupe", 680: "Haiti", 682: "Jamaica", 683: "Martinique", 684: "Montserrat",
	685: "Puerto Rico", 686: "Saint Lucia", 687: "Saint Vincent and the Grenadines",
	688: "Trinidad and Tobago", 689: "Turks and Caicos Islands", 690: "Virgin Islands",
	700: "Argentina", 701: "Argentina", 710: "Brazil", 720: "Chile", 725: "Paraguay",
	730: "Peru", 735: "Uruguay", 740: "Suriname", 745: "Venezuela", 750: "Falkland Islands",
	755: "Guyana", 760: "Ecuador", 765: "Bolivia", 770: "Colombia", 775: "Panama",
	780: "Trinidad and Tobago", 800: "Alaska", 803: "Hawaii", 810: "Guam", 820: "Northern Mariana Islands",
	830: "Palau", 850: "United States", 857: "United States", 870: "United States", 875: "United States",
	880: "United States", 885: "United States", 890: "United States", 895: "United States",
}

// shipTypeMeanings maps ITU ship type codes to their meaning.
// Codes not listed here fall back to the aislib table.
var shipTypeMeanings = map[int]string{
	0:  "Not available (default)",
	20: "Wing in ground (WIG), all ships of this type",
	21: "WIG, Hazardous category A",
	22: "WIG, Hazardous category B",
	23: "WIG, Hazardous category C",
	24: "WIG, Hazardous category D",
	25: "WIG, Reserved for future use",
	26: "WIG, Reserved for future use",
	27: "WIG, Reserved for future use",
	28: "WIG, Reserved for future use",
	29: "WIG, Reserved for future use",
	30: "Fishing",
	31: "Towing",
	32: "Towing: length exceeds 200m or breadth exceeds 25m",
	33: "Dredging or underwater ops",
	34: "Diving ops",
	35: "Military ops",
	36: "Sailing",
	37: "Pleasure Craft",
	40: "High speed craft (HSC), all ships of this type",
	50: "Pilot vessel",
	51: "Search and rescue vessel",
	52: "Tug",
	53: "Port tender",
	54: "Anti-pollution equipment",
	55: "Law enforcement vessel",
	56: "Spare - Local Vessel",
	57: "Spare - Local Vessel",
	58: "Medical transport",
	59: "Noncombatant ship according to RR Resolution No. 18",
	60: "Passenger, all ships of this type",
	70: "Cargo, all ships of this type",
	80: "Tanker, all ships of this type",
	90: "Other type, all ships of this type",
}
