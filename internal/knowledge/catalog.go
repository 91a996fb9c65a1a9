package knowledge

// Rule IDs referenced outside the catalog table.
const (
	RuleWinVirtualOOM = "WIN_VIRTUAL_OOM"
	RulePhysicalOOM   = "PHYSICAL_OOM"
)

// guardRegistry maps rule IDs to auxiliary predicates attached at load
// time. Keeping the mapping here, rather than special-casing IDs inside
// the rule engine, lets new guarded rules register without touching the
// matching logic.
//
// The physical-OOM rule only applies when the JVM printed its
// "Possible reasons" section; keyword counting alone cannot tell that
// section apart from the virtual-memory variant.
var guardRegistry = map[string]GuardFunc{
	RulePhysicalOOM: RequireMarker("possible reasons"),
}

// BuiltinCatalog returns the curated JVM/IDE crash rule catalog. The
// keyword sets are literal fragments of real hs_err / IDE crash logs;
// do not normalize or reword them.
func BuiltinCatalog() (*Catalog, error) {
	return NewCatalog(builtinRules())
}

func builtinRules() []Rule {
	return []Rule{
		{
			ID:       "JBR_METAL_MAC",
			Category: "JBR issue",
			Name:     "JBR crash after external display change on macOS",
			Keywords: []string{
				"unable to initialize Metal",
				"No MTLDevice",
				"Cannot load metal library",
				"CGraphicsDevice",
			},
			ExceptionTypes: []string{"IllegalStateException"},
			Platforms:      []string{"mac", "darwin"},
			Description: "Recreating the Metal graphics device after an external display " +
				"is attached or detached on macOS fails to find an MTLDevice, crashing " +
				"the JVM. Known JBR defect.",
			Solution: "1. Disconnect the external display and restart the IDE\n" +
				"2. Upgrade JBR to the latest release\n" +
				"3. Workaround: add -Dsun.java2d.metal=false to the IDE VM options",
		},
		{
			ID:       "JBR_NULL_BACK_BUFFER",
			Category: "JBR issue",
			Name:     "JBR graphics back-buffer null pointer",
			Keywords: []string{
				"backBuffers[i]\" is null",
				"VolatileImage.getGraphics()",
				"backBuffers",
			},
			ExceptionTypes: []string{"NullPointerException"},
			Description: "The JBR rendering layer's backBuffers array was never " +
				"initialized or has been cleared. Internal JBR defect.",
			Solution: "1. Upgrade JBR to the latest release\n" +
				"2. File a bug report with JetBrains",
		},
		{
			ID:       RuleWinVirtualOOM,
			Category: "Out of memory",
			Name:     "Windows virtual memory exhausted",
			Keywords: []string{
				"Native memory allocation",
				"failed to map",
				"failed to allocate",
				"G1 virtual space",
				"os_windows.cpp",
				"arena.cpp",
				"Out of Memory Error",
				"Chunk::new",
				"ChunkPool::allocate",
			},
			// Reports carrying the "Possible reasons" section belong to
			// the physical-memory rule instead.
			NegativeKeywords: []string{"Possible reasons", "physical RAM"},
			Platforms:        []string{"windows"},
			Description: "Windows has run out of available virtual memory, so the JVM " +
				"cannot satisfy mmap/malloc requests. Typically the page file has only " +
				"a few MB left.",
			Solution: "1. Increase the Windows page file size (1.5-3x physical RAM)\n" +
				"2. Close other memory-heavy programs\n" +
				"3. Lower the IDE heap setting (-Xmx)\n" +
				"4. Add physical RAM",
		},
		{
			ID:       RulePhysicalOOM,
			Category: "Out of memory",
			Name:     "Physical memory exhausted",
			Keywords: []string{
				"Native memory allocation",
				"failed to allocate",
				"failed to map",
				"Possible reasons",
				"physical RAM or swap space",
				"CompressedOops",
			},
			Description: "Both physical RAM and swap are exhausted and the JVM's native " +
				"allocation failed. Newer JBR/JVM builds print a detailed " +
				"\"Possible reasons\" section for this case.",
			Solution: "1. Close other processes to free physical memory\n" +
				"2. Grow the swap file / swap partition\n" +
				"3. Add physical RAM\n" +
				"4. Check the IDE for heap leaks (steadily growing heap)",
		},
		{
			ID:       "CHROME_ELF_VIOLATION",
			Category: "Undetermined",
			Name:     "chrome_elf.dll access violation",
			Keywords: []string{
				"EXCEPTION_ACCESS_VIOLATION",
				"chrome_elf.dll",
				"0x1b549",
				"ProcessHandleImpl.getProcessPids0",
			},
			Platforms: []string{"windows"},
			Description: "Root cause not established. chrome_elf.dll (a CEF/Chromium " +
				"component) conflicts with the JVM process-enumeration call " +
				"getProcessPids0, producing an access violation.",
			Solution: "1. Try disabling the embedded browser (JCEF) in the IDE\n" +
				"2. Upgrade the IDE and JBR\n" +
				"3. Send the full crash log to JetBrains",
		},
		{
			ID:       "JBR_HARDWARE_CPU",
			Category: "JBR issue",
			Name:     "JBR crash, suspected CPU/hardware fault",
			Keywords: []string{
				"EXCEPTION_ACCESS_VIOLATION",
				"GCTaskThread",
				"GC Thread",
				"C2 CompilerThread",
				"ConcurrentGCThread",
				"data execution prevention violation",
			},
			NegativeKeywords: []string{"chrome_elf.dll", "Possible reasons"},
			Description: "JBR runtime fault that community analysis attributes to " +
				"hardware: unstable CPU/RAM overclocking, a failing CPU or memory " +
				"module, or outdated drivers.",
			Solution: "1. Reset CPU/RAM overclocking in the BIOS to stock frequencies\n" +
				"2. Run a memory stability test (MemTest86)\n" +
				"3. Update the motherboard BIOS and hardware drivers\n" +
				"4. Check whether antivirus software is intercepting the JVM process",
		},
		{
			ID:       "JBR_A27_CRASH",
			Category: "JBR issue",
			Name:     "JBR-A-27 intermittent crash (known bug)",
			Keywords: []string{
				"EXCEPTION_ACCESS_VIOLATION",
				"JBR-17.0.12+1-1087.25-jcef",
			},
			Description: "Known intermittent crash in JBR 17.0.12+1-1087.25-jcef, " +
				"tracked in JetBrains YouTrack as JBR-A-27.",
			Solution: "1. Upgrade JBR past this build to avoid the known bug\n" +
				"2. See https://youtrack.jetbrains.com/articles/JBR-A-27",
		},
		{
			ID:       "JDK_BUG",
			Category: "JDK bug",
			Name:     "Known JDK bug (font rendering / class loader)",
			Keywords: []string{
				"DrawGlyphListLCD",
				"EXCEPTION_IN_PAGE_ERROR",
				"0xc0000006",
				"defineClass2",
				"zip.dll",
			},
			Description: "Known JDK defect, usually in LCD font rendering " +
				"(DrawGlyphListLCD) or the class loader (defineClass2).",
			Solution: "1. Upgrade the JDK/JBR to a build with the fix\n" +
				"2. File a bug with JetBrains or the OpenJDK community",
		},
	}
}
