package browser

// resolverJS returns the elements matching an internal selector. It
// understands CSS, internal:role, internal:text and nth parts joined by
// " >> ".
const resolverJS = `(sel) => {
	const splitChain = (s) => {
		const out = []; let cur = ''; let quote = '';
		for (let i = 0; i < s.length; i++) {
			const c = s[i];
			if (quote) {
				cur += c;
				if (c === '\\' && i + 1 < s.length) { cur += s[++i]; continue; }
				if (c === quote) quote = '';
				continue;
			}
			if (c === '"' || c === "'") { quote = c; cur += c; continue; }
			if (s.startsWith(' >> ', i)) { out.push(cur.trim()); cur = ''; i += 3; continue; }
			cur += c;
		}
		if (cur.trim()) out.push(cur.trim());
		return out;
	};
	const unquote = (s) => {
		const m = /^"((?:[^"\\]|\\.)*)"([is]?)/.exec(s);
		if (!m) return { value: s, exact: false };
		return { value: m[1].replace(/\\(.)/g, '$1'), exact: m[2] === 's' };
	};
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
	const matches = (text, want) => want.exact ? norm(text) === want.value : norm(text).toLowerCase().includes(want.value.toLowerCase());
	const implicitRole = (el) => {
		const tag = el.tagName.toLowerCase();
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (tag === 'button') return 'button';
		if (tag === 'a' && el.hasAttribute('href')) return 'link';
		if (tag === 'select') return 'combobox';
		if (tag === 'textarea') return 'textbox';
		if (/^h[1-6]$/.test(tag)) return 'heading';
		if (tag === 'li') return 'listitem';
		if (tag === 'img') return 'img';
		if (tag === 'input') {
			if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
			if (type === 'checkbox') return 'checkbox';
			if (type === 'radio') return 'radio';
			if (['', 'text', 'email', 'search', 'tel', 'url', 'password'].includes(type)) return 'textbox';
		}
		return '';
	};
	const roleOf = (el) => el.getAttribute('role') || implicitRole(el);
	const nameOf = (el) => {
		const label = el.getAttribute('aria-label');
		if (label) return label;
		const by = el.getAttribute('aria-labelledby');
		if (by) return by.split(/\s+/).map(id => { const n = document.getElementById(id); return n ? n.textContent : ''; }).join(' ');
		if (el.labels && el.labels.length) return Array.from(el.labels).map(l => l.textContent).join(' ');
		if (el.tagName === 'INPUT' && ['button', 'submit', 'reset'].includes(el.type)) return el.value;
		if (el.tagName === 'IMG') return el.getAttribute('alt') || '';
		const text = el.innerText !== undefined ? el.innerText : el.textContent;
		return text || el.getAttribute('title') || el.getAttribute('placeholder') || '';
	};
	const all = (roots) => {
		const out = [];
		for (const r of roots) out.push(...r.querySelectorAll('*'));
		return out;
	};
	let scope = [document];
	let current = null;
	for (const part of splitChain(sel)) {
		const roots = current === null ? scope : current;
		if (part.startsWith('nth=')) {
			const n = parseInt(part.slice(4), 10);
			const list = current === null ? [] : current;
			const pick = n < 0 ? list[list.length + n] : list[n];
			current = pick ? [pick] : [];
			continue;
		}
		if (part.startsWith('internal:text=')) {
			const want = unquote(part.slice('internal:text='.length));
			current = all(roots).filter(el => matches(el.textContent, want) &&
				!Array.from(el.children).some(c => matches(c.textContent, want)));
			continue;
		}
		if (part.startsWith('internal:role=')) {
			const body = part.slice('internal:role='.length);
			const i = body.indexOf('[');
			const role = i < 0 ? body : body.slice(0, i);
			let want = null;
			if (i >= 0) {
				const attrs = body.slice(i + 1);
				if (attrs.startsWith('name=')) want = unquote(attrs.slice(5));
			}
			current = all(roots).filter(el => roleOf(el) === role && (!want || matches(nameOf(el), want)));
			continue;
		}
		const found = [];
		for (const r of roots) found.push(...r.querySelectorAll(part));
		current = Array.from(new Set(found));
	}
	return current || [];
}`

// hooksJS installs the gesture listeners once per document. Events are
// buffered on window and drained by drainJS.
const hooksJS = `() => {
	const w = window;
	if (w.__recorderHooked) return true;
	w.__recorderHooked = true;
	w.__recorderEvents = [];
	w.__recorderMode = w.__recorderMode || 'none';

	const cssEscape = (s) => (window.CSS && CSS.escape) ? CSS.escape(s) : s.replace(/[^a-zA-Z0-9_-]/g, '\\$&');
	const quote = (s) => '"' + s.replace(/\\/g, '\\\\').replace(/"/g, '\\"') + '"';
	const cssPath = (el) => {
		const parts = [];
		while (el && el.nodeType === 1 && el !== document.documentElement) {
			if (el.id) { parts.unshift('#' + cssEscape(el.id)); break; }
			let part = el.tagName.toLowerCase();
			const parent = el.parentElement;
			if (parent) {
				const same = Array.from(parent.children).filter(c => c.tagName === el.tagName);
				if (same.length > 1) part += ':nth-of-type(' + (same.indexOf(el) + 1) + ')';
			}
			parts.unshift(part);
			el = parent;
		}
		return parts.join(' > ');
	};
	const selectorFor = (el) => {
		const testid = el.getAttribute && el.getAttribute('data-testid');
		if (testid) return '[data-testid=' + quote(testid) + ']';
		const tag = el.tagName.toLowerCase();
		const role = el.getAttribute('role') || (tag === 'button' ? 'button' : (tag === 'a' && el.hasAttribute('href')) ? 'link' : '');
		const name = (el.getAttribute('aria-label') || el.innerText || '').replace(/\s+/g, ' ').trim();
		if (role && name && name.length <= 80) return 'internal:role=' + role + '[name=' + quote(name) + 'i]';
		if (el.id && document.querySelectorAll('#' + cssEscape(el.id)).length === 1) return '#' + cssEscape(el.id);
		const placeholder = el.getAttribute('placeholder');
		if (placeholder) return '[placeholder=' + quote(placeholder) + ']';
		return cssPath(el);
	};
	const targetOf = (ev) => {
		let el = ev.target;
		while (el && el.nodeType !== 1) el = el.parentNode;
		const clickable = el && el.closest && el.closest('button, a[href], [role=button], [role=link]');
		return clickable || el;
	};
	const mods = (ev) => (ev.altKey ? 1 : 0) | (ev.ctrlKey ? 2 : 0) | (ev.metaKey ? 4 : 0) | (ev.shiftKey ? 8 : 0);
	const inspecting = () => w.__recorderMode === 'inspecting' || w.__recorderMode === 'recording-inspecting';
	const push = (e) => { e.ts = Date.now(); w.__recorderEvents.push(e); };
	const buttons = ['left', 'middle', 'right'];

	document.addEventListener('click', (ev) => {
		const el = targetOf(ev);
		if (!el) return;
		if (inspecting()) {
			ev.preventDefault();
			ev.stopPropagation();
			push({ type: 'pick', selector: selectorFor(el), gesture: ev.isTrusted });
			return;
		}
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (el.tagName === 'INPUT' && (type === 'checkbox' || type === 'radio')) return;
		if (el.tagName === 'SELECT') return;
		push({ type: 'click', selector: selectorFor(el), button: buttons[ev.button] || 'left', modifiers: mods(ev), clickCount: ev.detail || 1 });
	}, true);

	document.addEventListener('input', (ev) => {
		const el = ev.target;
		if (!el || inspecting()) return;
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (el.tagName === 'SELECT' || type === 'checkbox' || type === 'radio' || type === 'file') return;
		push({ type: 'fill', selector: selectorFor(el), value: el.value || '' });
	}, true);

	document.addEventListener('change', (ev) => {
		const el = ev.target;
		if (!el || inspecting()) return;
		const type = (el.getAttribute('type') || '').toLowerCase();
		if (type === 'checkbox' || type === 'radio') {
			push({ type: el.checked ? 'check' : 'uncheck', selector: selectorFor(el) });
		} else if (el.tagName === 'SELECT') {
			push({ type: 'select', selector: selectorFor(el), options: Array.from(el.selectedOptions).map(o => o.value) });
		} else if (type === 'file') {
			push({ type: 'setInputFiles', selector: selectorFor(el), options: Array.from(el.files || []).map(f => f.name) });
		}
	}, true);

	document.addEventListener('keydown', (ev) => {
		if (inspecting()) return;
		const special = ['Enter', 'Tab', 'Escape', 'ArrowUp', 'ArrowDown', 'ArrowLeft', 'ArrowRight', 'PageUp', 'PageDown', 'Home', 'End'];
		const chord = (ev.ctrlKey || ev.metaKey || ev.altKey) && ev.key.length === 1;
		if (!special.includes(ev.key) && !chord) return;
		const el = ev.target && ev.target.nodeType === 1 ? ev.target : document.body;
		push({ type: 'press', selector: selectorFor(el), key: ev.key, modifiers: mods(ev) });
	}, true);
	return true;
}`

// drainJS returns and clears the buffered gesture events.
const drainJS = `() => {
	const buf = Array.isArray(window.__recorderEvents) ? window.__recorderEvents : [];
	window.__recorderEvents = [];
	return buf;
}`

// modeJS tells the hooks which mode the session is in.
const modeJS = `(mode) => { window.__recorderMode = mode; return true; }`

// highlightJS outlines the elements matching a selector. An empty
// selector removes the overlay.
var highlightJS = `(sel) => {
	const resolve = ` + resolverJS + `;
	document.querySelectorAll('[data-recorder-highlight]').forEach(n => n.remove());
	const els = sel ? resolve(sel) : [];
	for (const el of els) {
		const r = el.getBoundingClientRect();
		const box = document.createElement('div');
		box.setAttribute('data-recorder-highlight', '');
		Object.assign(box.style, {
			position: 'fixed', left: r.left + 'px', top: r.top + 'px',
			width: r.width + 'px', height: r.height + 'px',
			outline: '2px solid #1a73e8', background: 'rgba(26,115,232,0.15)',
			pointerEvents: 'none', zIndex: 2147483647,
		});
		document.documentElement.appendChild(box);
	}
	return els.length;
}`
