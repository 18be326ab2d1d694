package shell

// T_SHELL voxels are small triangulated cells. Every cell stores a cube
// configuration that selects up to five triangles from a fixed set of 189
// triangle shapes; each triangle vertex lies on one of the 12 cube edges at
// one of 7 positions along it.

const (
	// NumTriangleShapes is the number of distinct triangles spanned by
	// three cube edges.
	NumTriangleShapes = 189
	// NumConfigs is the number of cube configurations that can hold triangles.
	NumConfigs = 255
	// EdgePositions is the number of quantized vertex positions per edge.
	EdgePositions = 7
	// MaxTrianglesPerVoxel bounds the triangles of one configuration.
	MaxTrianglesPerVoxel = 5
)

// EdgeVertices lists the two cube vertices (1..8) bounding each edge (1..12).
var EdgeVertices = [13][2]uint8{
	{0, 0}, {1, 2}, {3, 2}, {4, 3}, {4, 1}, {5, 6}, {7, 6}, {8, 7}, {8, 5}, {1, 5}, {2, 6}, {4, 8}, {3, 7},
}

// CornerX, CornerY and CornerZ give the position (0 or 1) of each cube vertex
// (1..8) along the column, row and slice axes.
var (
	CornerX = [9]uint8{0, 0, 1, 1, 0, 0, 1, 1, 0}
	CornerY = [9]uint8{0, 1, 1, 0, 0, 1, 1, 0, 0}
	CornerZ = [9]uint8{0, 0, 0, 0, 0, 1, 1, 1, 1}
)

// TriangleEdges returns the three cube edges (1..12) carrying the vertices of
// triangle shape t.
func TriangleEdges(t int) [3]uint8 {
	return triangleEdges[t]
}

// ConfigTriangles returns the triangle shapes of a cube configuration.
// Configurations 0 and 255 have no triangles.
func ConfigTriangles(config uint8) []uint8 {
	if int(config) >= NumConfigs {
		return nil
	}
	return triangleTable[config]
}

// TShellRecordSize is the byte length of a T_SHELL entry starting with the
// given configuration byte.
func TShellRecordSize(config uint8) int {
	return 3 + 3*len(ConfigTriangles(config))
}

// Triangle is one decoded facet of a T_SHELL voxel.
type Triangle struct {
	// Shape indexes the 189 triangle shapes
	Shape int
	// Position is the quantized position (0..6) of each vertex along its edge;
	// 3 is the edge midpoint.
	Position [3]int
	// Code is the BG normal code of the facet
	Code uint16
}

// Weight returns the fraction along the edge from its first to its second
// vertex at which vertex k lies.
func (t Triangle) Weight(k int) float64 {
	return float64(2*t.Position[k]+1) / 14
}

// TShellVoxel is the decoded view of a T_SHELL entry.
type TShellVoxel struct {
	Column int
	Config uint8
	tris   []byte
}

// NumTriangles returns the number of facets in the voxel.
func (v TShellVoxel) NumTriangles() int {
	return len(v.tris) / 3
}

// Triangle decodes facet k of the voxel.
func (v TShellVoxel) Triangle(k int) Triangle {
	b := v.tris[3*k : 3*k+3]
	q0 := int(b[0] >> 5)
	q1 := int(b[0]>>2) & 7
	q2 := int(b[0]<<1)&7 | int(b[1]>>7)
	return Triangle{
		Shape:    int(ConfigTriangles(v.Config)[k]),
		Position: [3]int{signed3(q0) + 3, signed3(q1) + 3, signed3(q2) + 3},
		Code:     uint16(b[1]&0x7f)<<8 | uint16(b[2]),
	}
}

// signed3 sign-extends a 3 bit field and limits it to the seven stored
// positions -3..3.
func signed3(q int) int {
	if q&4 != 0 {
		q -= 8
	}
	if q < -3 {
		q = -3
	}
	return q
}

func decodeTShell(b []byte) TShellVoxel {
	n := len(ConfigTriangles(b[0]))
	return TShellVoxel{
		Column: int(b[1])<<8 | int(b[2]),
		Config: b[0],
		tris:   b[3 : 3+3*n],
	}
}

// appendTShell packs a T_SHELL entry. Positions are 0..6 per vertex.
func appendTShell(dst []byte, column int, config uint8, tris []Triangle) []byte {
	dst = append(dst, config, byte(column>>8), byte(column))
	for _, t := range tris {
		q0 := uint8(t.Position[0]-3) & 7
		q1 := uint8(t.Position[1]-3) & 7
		q2 := uint8(t.Position[2]-3) & 7
		dst = append(dst,
			q0<<5|q1<<2|q2>>1,
			(q2&1)<<7|byte(t.Code>>8)&0x7f,
			byte(t.Code))
	}
	return dst
}

var triangleEdges = [NumTriangleShapes][3]uint8{
	{1, 2, 6}, {1, 2, 7}, {1, 2, 8}, {1, 2, 9}, {1, 2, 10}, {1, 2, 11},
	{1, 2, 12}, {1, 3, 5}, {1, 3, 6}, {1, 3, 7}, {1, 3, 8}, {1, 3, 9},
	{1, 3, 10}, {1, 3, 11}, {1, 3, 12}, {1, 4, 5}, {1, 4, 6}, {1, 4, 7},
	{1, 4, 8}, {1, 4, 9}, {1, 4, 10}, {1, 4, 11}, {1, 4, 12}, {1, 5, 6},
	{1, 5, 7}, {1, 5, 8}, {1, 5, 11}, {1, 5, 12}, {1, 6, 7}, {1, 6, 8},
	{1, 6, 9}, {1, 6, 10}, {1, 6, 11}, {1, 6, 12}, {1, 7, 8}, {1, 7, 9},
	{1, 7, 10}, {1, 7, 11}, {1, 7, 12}, {1, 8, 9}, {1, 8, 10}, {1, 8, 11},
	{1, 8, 12}, {1, 9, 11}, {1, 9, 12}, {1, 10, 11}, {1, 10, 12}, {1, 11, 12},
	{2, 3, 5}, {2, 3, 7}, {2, 3, 8}, {2, 3, 9}, {2, 3, 10}, {2, 3, 11},
	{2, 3, 12}, {2, 4, 5}, {2, 4, 6}, {2, 4, 7}, {2, 4, 8}, {2, 4, 9},
	{2, 4, 10}, {2, 4, 11}, {2, 4, 12}, {2, 5, 6}, {2, 5, 7}, {2, 5, 8},
	{2, 5, 9}, {2, 5, 10}, {2, 5, 11}, {2, 5, 12}, {2, 6, 7}, {2, 6, 8},
	{2, 6, 9}, {2, 6, 11}, {2, 7, 8}, {2, 7, 10}, {2, 7, 11}, {2, 7, 12},
	{2, 8, 9}, {2, 8, 10}, {2, 8, 11}, {2, 8, 12}, {2, 9, 10}, {2, 9, 11},
	{2, 9, 12}, {2, 10, 11}, {2, 11, 12}, {3, 4, 5}, {3, 4, 6}, {3, 4, 7},
	{3, 4, 8}, {3, 4, 9}, {3, 4, 10}, {3, 4, 11}, {3, 4, 12}, {3, 5, 6},
	{3, 5, 7}, {3, 5, 8}, {3, 5, 9}, {3, 5, 10}, {3, 5, 11}, {3, 5, 12},
	{3, 6, 7}, {3, 6, 8}, {3, 6, 9}, {3, 6, 10}, {3, 6, 11}, {3, 6, 12},
	{3, 7, 8}, {3, 7, 9}, {3, 7, 10}, {3, 8, 9}, {3, 8, 10}, {3, 8, 11},
	{3, 8, 12}, {3, 9, 10}, {3, 9, 11}, {3, 9, 12}, {3, 10, 11}, {3, 10, 12},
	{4, 5, 6}, {4, 5, 7}, {4, 5, 8}, {4, 5, 9}, {4, 5, 10}, {4, 5, 11},
	{4, 5, 12}, {4, 6, 7}, {4, 6, 8}, {4, 6, 9}, {4, 6, 10}, {4, 6, 11},
	{4, 6, 12}, {4, 7, 8}, {4, 7, 9}, {4, 7, 10}, {4, 7, 11}, {4, 7, 12},
	{4, 8, 10}, {4, 8, 12}, {4, 9, 12}, {4, 10, 11}, {4, 10, 12}, {4, 11, 12},
	{5, 6, 9}, {5, 6, 10}, {5, 6, 11}, {5, 6, 12}, {5, 7, 9}, {5, 7, 10},
	{5, 7, 12}, {5, 8, 9}, {5, 8, 10}, {5, 8, 11}, {5, 8, 12}, {5, 9, 11},
	{5, 9, 12}, {5, 10, 11}, {5, 10, 12}, {5, 11, 12}, {6, 7, 9}, {6, 7, 10},
	{6, 7, 11}, {6, 7, 12}, {6, 8, 10}, {6, 8, 11}, {6, 8, 12}, {6, 9, 10},
	{6, 9, 11}, {6, 9, 12}, {6, 10, 11}, {6, 11, 12}, {7, 8, 9}, {7, 8, 10},
	{7, 8, 11}, {7, 8, 12}, {7, 9, 10}, {7, 9, 11}, {7, 9, 12}, {7, 10, 11},
	{8, 9, 10}, {8, 9, 12}, {8, 10, 11}, {8, 10, 12}, {8, 11, 12}, {9, 10, 11},
	{9, 10, 12}, {9, 11, 12}, {10, 11, 12},
}

var triangleTable = [NumConfigs][]uint8{
	{}, {19}, {4}, {82, 59}, {54}, {19, 54}, {119, 12}, {91, 117, 186}, {93}, {43, 13}, {4, 93},
	{53, 85, 185}, {62, 143}, {6, 44, 187}, {20, 141, 188}, {186, 187}, {151}, {15, 122}, {151, 4},
	{67, 65, 58}, {151, 54}, {122, 15, 54}, {119, 12, 151}, {122, 126, 158, 94}, {151, 93},
	{153, 100, 7}, {4, 151, 93}, {53, 85, 182, 152}, {62, 143, 151}, {25, 42, 184, 6},
	{151, 45, 188, 21}, {153, 157, 188}, {145}, {145, 19}, {0, 23}, {144, 129, 56}, {145, 54},
	{145, 19, 54}, {107, 95, 7}, {91, 98, 101, 147}, {145, 93}, {13, 43, 145}, {23, 0, 93},
	{155, 68, 63, 53}, {143, 62, 145}, {145, 84, 187, 3}, {171, 32, 23, 21}, {144, 169, 187},
	{180, 164}, {20, 130, 128}, {39, 2, 71}, {71, 58}, {180, 164, 54}, {54, 31, 16, 128},
	{166, 42, 14, 39}, {107, 88, 128}, {164, 180, 93}, {12, 112, 164, 113}, {93, 3, 78, 71},
	{53, 80, 71}, {86, 61, 164, 180}, {29, 31, 41, 6, 47}, {47, 21, 33, 39, 29}, {165, 171}, {163},
	{163, 19}, {4, 163}, {59, 82, 163}, {70, 49}, {70, 49, 19}, {161, 36, 9}, {102, 104, 167, 91},
	{163, 93}, {43, 13, 163}, {163, 4, 93}, {163, 52, 118, 185}, {136, 127, 56}, {0, 32, 43, 162},
	{136, 127, 16, 31}, {161, 179, 185}, {163, 151}, {15, 122, 163}, {151, 4, 163},
	{163, 152, 79, 58}, {49, 70, 151}, {25, 18, 70, 49}, {151, 31, 28, 9}, {138, 152, 92, 161, 110},
	{151, 163, 93}, {163, 97, 7, 113}, {93, 4, 151, 163}, {52, 118, 157, 153, 163},
	{151, 162, 131, 56}, {73, 162, 5, 153, 26}, {162, 131, 130, 20, 151}, {161, 179, 152, 182},
	{150, 158}, {150, 158, 19}, {6, 38, 24}, {150, 126, 62, 123}, {67, 48, 96}, {19, 99, 96, 52},
	{24, 9}, {91, 98, 96}, {158, 150, 93}, {11, 116, 158, 150}, {93, 77, 1, 24}, {64, 77, 66, 53, 83},
	{60, 135, 149, 136}, {83, 3, 76, 67, 64}, {136, 17, 24}, {148, 177}, {175, 181, 186},
	{46, 42, 18, 175}, {6, 44, 178, 172}, {175, 81, 58}, {180, 112, 108, 52}, {110, 52, 173, 20, 138},
	{39, 34, 9}, {108, 90}, {93, 172, 178, 186}, {10, 113, 40, 175, 183}, {172, 178, 44, 6, 93},
	{53, 80, 77, 74}, {176, 172, 75, 136, 57}, {4, 174}, {136, 17, 172, 35}, {174}, {174}, {174, 19},
	{4, 174}, {82, 59, 174}, {54, 174}, {19, 174, 54}, {12, 119, 174}, {174, 140, 186, 94}, {108, 90},
	{39, 34, 9}, {108, 90, 4}, {180, 112, 108, 52}, {175, 81, 58}, {6, 44, 178, 172},
	{46, 42, 18, 175}, {175, 181, 186}, {148, 177}, {136, 17, 24}, {177, 148, 4}, {60, 135, 149, 136},
	{148, 177, 54}, {54, 37, 24, 21}, {46, 14, 148, 177}, {142, 94, 124, 136, 121}, {91, 98, 96},
	{24, 9}, {4, 123, 87, 96}, {67, 48, 96}, {150, 126, 62, 123}, {6, 38, 24},
	{121, 123, 137, 20, 142}, {150, 158}, {145, 174}, {145, 174, 19}, {0, 23, 174},
	{174, 120, 56, 123}, {145, 54, 174}, {145, 174, 19, 54}, {174, 147, 101, 7},
	{147, 101, 98, 91, 174}, {90, 108, 145}, {145, 35, 9, 172}, {133, 89, 23, 0},
	{109, 172, 51, 144, 72}, {145, 74, 58, 77}, {3, 84, 181, 175, 145}, {27, 147, 22, 175, 139},
	{175, 181, 147, 156}, {161, 179, 185}, {136, 127, 16, 31}, {0, 32, 43, 162}, {136, 127, 56},
	{54, 170, 185, 162}, {31, 16, 127, 136, 54}, {168, 162, 30, 107, 8}, {107, 88, 162, 131},
	{102, 104, 167, 91}, {161, 36, 9}, {72, 3, 160, 91, 109}, {70, 49}, {57, 77, 134, 161, 176},
	{6, 38, 31, 28}, {163, 19}, {163}, {165, 171}, {171, 165, 19}, {165, 171, 4}, {166, 184, 82, 59},
	{53, 80, 71}, {19, 50, 71, 113}, {12, 112, 164, 113}, {103, 113, 105, 91, 115}, {107, 88, 128},
	{166, 42, 14, 39}, {4, 132, 128, 94}, {115, 52, 111, 107, 103}, {71, 58}, {39, 2, 71},
	{20, 130, 128}, {180, 164}, {144, 169, 187}, {171, 32, 23, 21}, {4, 147, 156, 187},
	{159, 147, 125, 67, 55}, {155, 68, 63, 53}, {26, 21, 146, 53, 73}, {8, 31, 106, 144, 168},
	{145, 93}, {91, 98, 101, 147}, {107, 95, 7}, {123, 87, 95, 107, 4}, {67, 48, 147, 101},
	{144, 129, 56}, {0, 23}, {144, 129, 31, 16}, {145}, {153, 157, 188}, {19, 152, 182, 188},
	{25, 42, 184, 6}, {55, 123, 69, 153, 159}, {53, 85, 182, 152}, {152, 182, 85, 53, 19},
	{153, 100, 7}, {153, 100, 123, 87}, {122, 126, 158, 94}, {183, 152, 114, 39, 10},
	{139, 94, 154, 6, 27}, {151, 54}, {67, 65, 58}, {39, 2, 152, 79}, {15, 122}, {151}, {186, 187},
	{20, 141, 188}, {6, 44, 187}, {62, 143}, {53, 85, 185}, {20, 141, 52, 118}, {43, 13}, {93},
	{91, 117, 186}, {119, 12}, {91, 117, 3, 84}, {54}, {82, 59}, {4}, {19},
}
